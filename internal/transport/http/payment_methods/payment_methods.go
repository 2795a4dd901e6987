package paymentmethods

import (
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/transport/http/response"
	"github.com/spf13/viper"
)

type mercadoPagoMethods struct {
	CreditCards bool `json:"credit_cards"`
	DebitCards  bool `json:"debit_cards"`
	PagoFacil   bool `json:"pagofacil"`
	Rapipago    bool `json:"rapipago"`
}

type mercadoPago struct {
	Enabled   bool               `json:"enabled"`
	Methods   mercadoPagoMethods `json:"methods"`
	PublicKey string             `json:"publicKey"`
}

type westernUnion struct {
	Enabled           bool   `json:"enabled"`
	RecipientName     string `json:"recipient_name"`
	RecipientDocument string `json:"recipient_document"`
	RecipientCountry  string `json:"recipient_country"`
	RecipientCity     string `json:"recipient_city"`
}

type transfer struct {
	Enabled       bool   `json:"enabled"`
	BankName      string `json:"bank_name"`
	AccountHolder string `json:"account_holder"`
	CBU           string `json:"cbu"`
	Alias         string `json:"alias"`
	CUIT          string `json:"cuit"`
	MPCVU         string `json:"mp_cvu"`
	MPAlias       string `json:"mp_alias"`
}

// Catalogue lists the payment options offered by the store.
type Catalogue struct {
	MercadoPago  mercadoPago  `json:"mercadopago"`
	WesternUnion westernUnion `json:"western_union"`
	Transfer     transfer     `json:"transfer"`
}

// NewCatalogue reads the catalogue from the payments.* configuration keys.
func NewCatalogue() Catalogue {
	return Catalogue{
		MercadoPago: mercadoPago{
			Enabled: viper.GetBool("payments.mercadopago.enabled"),
			Methods: mercadoPagoMethods{
				CreditCards: viper.GetBool("payments.mercadopago.credit_cards"),
				DebitCards:  viper.GetBool("payments.mercadopago.debit_cards"),
				PagoFacil:   viper.GetBool("payments.mercadopago.pagofacil"),
				Rapipago:    viper.GetBool("payments.mercadopago.rapipago"),
			},
			PublicKey: viper.GetString("mercadopago.public_key"),
		},
		WesternUnion: westernUnion{
			Enabled:           viper.GetBool("payments.western_union.enabled"),
			RecipientName:     viper.GetString("payments.western_union.recipient_name"),
			RecipientDocument: viper.GetString("payments.western_union.recipient_document"),
			RecipientCountry:  viper.GetString("payments.western_union.recipient_country"),
			RecipientCity:     viper.GetString("payments.western_union.recipient_city"),
		},
		Transfer: transfer{
			Enabled:       viper.GetBool("payments.transfer.enabled"),
			BankName:      viper.GetString("payments.transfer.bank_name"),
			AccountHolder: viper.GetString("payments.transfer.account_holder"),
			CBU:           viper.GetString("payments.transfer.cbu"),
			Alias:         viper.GetString("payments.transfer.alias"),
			CUIT:          viper.GetString("payments.transfer.cuit"),
			MPCVU:         viper.GetString("payments.transfer.mp_cvu"),
			MPAlias:       viper.GetString("payments.transfer.mp_alias"),
		},
	}
}

// PaymentMethods writes the catalogue.
func PaymentMethods(w http.ResponseWriter, _ *http.Request, catalogue Catalogue) {
	response.OK(w, map[string]any{"methods": catalogue})
}

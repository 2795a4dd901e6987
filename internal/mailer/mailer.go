package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/spf13/viper"
	"github.com/wneessen/go-mail"
)

// Sender delivers invoice emails over SMTP.
type Sender struct {
	client   *mail.Client
	from     string
	fromName string
	subject  string
	store    Store
}

// MustNewSender builds an SMTP sender from the email.* and store.* keys.
func MustNewSender() *Sender {
	port := viper.GetInt("email.port")
	if port == 0 {
		port = 587
	}

	timeoutSeconds := viper.GetInt("email.timeout_seconds")
	if timeoutSeconds == 0 {
		timeoutSeconds = 15
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(time.Duration(timeoutSeconds) * time.Second),
	}
	if user := viper.GetString("email.username"); user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(viper.GetString("email.password")),
		)
	}
	if viper.GetBool("email.ssl") {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(viper.GetString("email.host"), opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to create SMTP client: %v", err))
	}

	from := viper.GetString("email.from")
	if from == "" {
		from = viper.GetString("email.username")
	}

	return &Sender{
		client:   client,
		from:     from,
		fromName: viper.GetString("email.from_name"),
		subject:  viper.GetString("email.invoice_subject"),
		store: Store{
			Name:    viper.GetString("store.name"),
			Email:   viper.GetString("store.email"),
			Phone:   viper.GetString("store.phone"),
			Address: viper.GetString("store.address"),
		},
	}
}

// SendInvoice mails the invoice to the customer with a blind copy to the store.
func (s *Sender) SendInvoice(ctx context.Context, o *order.Order) error {
	m := mail.NewMsg()
	if s.fromName != "" {
		if err := m.FromFormat(s.fromName, s.from); err != nil {
			return fmt.Errorf("invalid from address: %w", err)
		}
	} else if err := m.From(s.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(o.Customer.Email); err != nil {
		return fmt.Errorf("invalid customer address: %w", err)
	}
	if s.store.Email != "" {
		if err := m.Bcc(s.store.Email); err != nil {
			return fmt.Errorf("invalid store address: %w", err)
		}
	}
	m.Subject(InvoiceSubject(s.subject, o, s.store))
	m.SetBodyString(mail.TypeTextPlain, InvoiceBody(o, s.store))

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send invoice email: %w", err)
	}

	slog.InfoContext(ctx, "Invoice email sent", "order_id", o.ID, "order_number", o.OrderNumber)

	return nil
}

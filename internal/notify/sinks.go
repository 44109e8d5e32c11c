package notify

import (
	"context"
	"fmt"

	"barbearia-twowell/internal/models"
)

// EmailSender is satisfied by aws.SESClient.
type EmailSender interface {
	SendText(ctx context.Context, to []string, subject, body string) (string, error)
}

// SMSSender is satisfied by aws.SNSClient.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// MessagePublisher is satisfied by camunda.Client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, variables interface{}) (int64, error)
}

// EmailSink mails the owner through SES.
type EmailSink struct {
	sender EmailSender
	to     []string
}

func NewEmailSink(sender EmailSender, to []string) *EmailSink {
	return &EmailSink{sender: sender, to: to}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Send(ctx context.Context, n models.BookingNotification) error {
	_, err := s.sender.SendText(ctx, s.to, Subject(n), Body(n))
	return err
}

// SMSSink texts the owner's phone through SNS.
type SMSSink struct {
	sender SMSSender
	phone  string
}

func NewSMSSink(sender SMSSender, phone string) *SMSSink {
	return &SMSSink{sender: sender, phone: phone}
}

func (s *SMSSink) Name() string { return "sms" }

func (s *SMSSink) Send(ctx context.Context, n models.BookingNotification) error {
	if s.phone == "" {
		return fmt.Errorf("no owner phone number configured")
	}
	_, err := s.sender.SendSMS(ctx, s.phone, Body(n))
	return err
}

// WorkflowSink publishes a message to the workflow engine, correlated by customer.
type WorkflowSink struct {
	publisher   MessagePublisher
	messageName string
}

// DefaultMessageName is published when none is configured.
const DefaultMessageName = "appointment-booked"

func NewWorkflowSink(publisher MessagePublisher, messageName string) *WorkflowSink {
	if messageName == "" {
		messageName = DefaultMessageName
	}
	return &WorkflowSink{publisher: publisher, messageName: messageName}
}

func (s *WorkflowSink) Name() string { return "workflow" }

func (s *WorkflowSink) Send(ctx context.Context, n models.BookingNotification) error {
	_, err := s.publisher.PublishMessage(ctx, s.messageName, n.CustomerID, n)
	return err
}

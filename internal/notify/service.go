package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelcraft/concierge/internal/appointments"
	"github.com/pixelcraft/concierge/internal/availability"
	"github.com/pixelcraft/concierge/pkg/logging"
)

// Service sends booking notifications. Failures are logged and returned but
// never roll back the appointment; the caller fires and forgets.
type Service struct {
	email      EmailSender
	ownerEmail string
	logger     *logging.Logger
}

// NewService creates a notification service. ownerEmail receives the
// business-owner copy of every confirmation.
func NewService(email EmailSender, ownerEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, ownerEmail: ownerEmail, logger: logger}
}

// BookingConfirmed emails the owner and the customer about a new booking.
func (s *Service) BookingConfirmed(ctx context.Context, appt *appointments.Appointment) error {
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping")
		return nil
	}

	when := formatWhen(appt)

	if s.ownerEmail != "" {
		ownerMsg := EmailMessage{
			To:      s.ownerEmail,
			Subject: fmt.Sprintf("New booking: %s on %s", appt.Customer.Name, appt.Date),
			Body: fmt.Sprintf(
				"A new consultation was booked through the site assistant.\n\n"+
					"Customer: %s\nEmail: %s\nPhone: %s\nWhen: %s\n",
				appt.Customer.Name, appt.Customer.Email, orDash(appt.Customer.Phone), when),
		}
		if err := s.email.Send(ctx, ownerMsg); err != nil {
			s.logger.Error("owner notification failed", "error", err, "appointment_id", appt.ID)
			return fmt.Errorf("notify: owner email: %w", err)
		}
	}

	customerMsg := EmailMessage{
		To:     appt.Customer.Email,
		ToName: appt.Customer.Name,
		Subject: "Your consultation is booked",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour consultation is confirmed for %s.\n\n"+
				"Need to reschedule? Just reply to this email.\n\n— Pixelcraft Studio",
			appt.Customer.Name, when),
	}
	if err := s.email.Send(ctx, customerMsg); err != nil {
		s.logger.Error("customer notification failed", "error", err, "appointment_id", appt.ID)
		return fmt.Errorf("notify: customer email: %w", err)
	}

	s.logger.Info("booking notifications sent", "appointment_id", appt.ID, "date", appt.Date)
	return nil
}

// formatWhen renders "Monday, June 3 at 2:00 PM".
func formatWhen(appt *appointments.Appointment) string {
	date, err := time.Parse(availability.DateFormat, appt.Date)
	if err != nil {
		return fmt.Sprintf("%s %s", appt.Date, appt.StartTime)
	}
	start, err := availability.ParseClock(appt.StartTime)
	if err != nil {
		return date.Format("Monday, January 2")
	}
	return fmt.Sprintf("%s at %s", date.Format("Monday, January 2"), availability.FormatDisplay(start))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

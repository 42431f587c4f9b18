// Package notifications records in-app notifications for leave state
// transitions. Delivery is fire-and-forget: failures are logged, never
// propagated, and correctness of the leave core does not depend on it.
package notifications

import (
	"context"
	"log/slog"
	"time"
)

type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type StoreAPI interface {
	CreateNotification(ctx context.Context, userID, ntype, title, body string) error
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}

// Mailer delivers a notification by email. Implementations must be safe
// for concurrent use.
type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// EmailLookup resolves a user's email address for mail delivery.
type EmailLookup interface {
	UserEmail(ctx context.Context, userID string) (string, error)
}

type Service struct {
	store  StoreAPI
	mailer Mailer
	emails EmailLookup
	from   string
}

func New(store StoreAPI) *Service {
	return &Service{store: store}
}

// WithMailer enables email fan-out alongside the in-app rows.
func (s *Service) WithMailer(mailer Mailer, emails EmailLookup, from string) *Service {
	s.mailer = mailer
	s.emails = emails
	s.from = from
	return s
}

// Notify writes a notification row and logs on failure instead of
// surfacing the error to the caller.
func (s *Service) Notify(ctx context.Context, userID, ntype, title, body string) {
	if userID == "" {
		return
	}
	if err := s.store.CreateNotification(ctx, userID, ntype, title, body); err != nil {
		slog.Warn("notification create failed", "type", ntype, "userId", userID, "err", err)
	}
	s.sendEmail(ctx, userID, title, body)
}

func (s *Service) sendEmail(ctx context.Context, userID, subject, body string) {
	if s.mailer == nil || s.emails == nil {
		return
	}
	to, err := s.emails.UserEmail(ctx, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "userId", userID, "err", err)
		return
	}
	if to == "" {
		return
	}
	if err := s.mailer.Send(ctx, s.from, to, subject, body); err != nil {
		slog.Warn("notification email send failed", "userId", userID, "err", err)
	}
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, userID, limit, offset)
}

func (s *Service) CountUnread(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}

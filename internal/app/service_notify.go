package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"atrium/api/internal/cache"
	"atrium/api/internal/notify"
	"atrium/api/internal/store"
	"atrium/api/internal/util"
)

func unreadKey(userID string) string {
	return cache.Key("notif", "unread", userID)
}

// Notify persists a notification and pushes it to the user's open
// WebSocket connections. When the user is offline and SMTP is configured
// the notification is also sent by email. Persistence failures are logged,
// never surfaced; notifications ride along other operations.
func (s *Service) Notify(ctx context.Context, userID, kind, title, body string) {
	notification := store.Notification{
		ID:        util.NewID("ntf"),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := s.store.InsertNotification(ctx, notification); err != nil {
		log.Printf("notify: persist for user %s: %v", userID, err)
		return
	}
	_ = s.cache.Delete(ctx, unreadKey(userID))

	delivered := s.hub.Publish(userID, notify.Event{
		NotificationID: notification.ID,
		Kind:           kind,
		Title:          title,
		Body:           body,
		CreatedAt:      notification.CreatedAt,
	})
	if delivered || !s.SMTPConfigured() {
		return
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("notify: lookup user %s for email: %v", userID, err)
		return
	}
	if err := s.email.SendNotificationEmail(user.Email, title, body); err != nil {
		log.Printf("notify: email to %s: %v", user.Email, err)
	}
}

// ListNotifications returns the caller's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, session Session, unreadOnly bool, limit, offset int) ([]store.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListNotifications(ctx, session.UserID, unreadOnly, limit, offset)
}

// UnreadCount returns the caller's unread notification count, cached with
// the short TTL and invalidated on every read/new-notification transition.
func (s *Service) UnreadCount(ctx context.Context, session Session, force bool) (int, error) {
	value, err := s.cache.GetOrSet(ctx, unreadKey(session.UserID), cache.TTLShort, force, func(ctx context.Context) ([]byte, error) {
		count, err := s.store.UnreadNotificationCount(ctx, session.UserID)
		if err != nil {
			return nil, err
		}
		return []byte(strconv.Itoa(count)), nil
	})
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(string(value))
	if err != nil {
		return 0, fmt.Errorf("decode cached unread count: %w", err)
	}
	return count, nil
}

// MarkNotificationRead marks one of the caller's notifications as read.
func (s *Service) MarkNotificationRead(ctx context.Context, session Session, notificationID string) error {
	if err := s.store.MarkNotificationRead(ctx, notificationID, session.UserID); err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "notification not found", nil)
		}
		return err
	}
	_ = s.cache.Delete(ctx, unreadKey(session.UserID))
	return nil
}

// MarkAllNotificationsRead marks everything read for the caller.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, session Session) error {
	if err := s.store.MarkAllNotificationsRead(ctx, session.UserID); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, unreadKey(session.UserID))
	return nil
}

// DeleteNotification removes one of the caller's notifications.
func (s *Service) DeleteNotification(ctx context.Context, session Session, notificationID string) error {
	if err := s.store.DeleteNotification(ctx, notificationID, session.UserID); err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "notification not found", nil)
		}
		return err
	}
	_ = s.cache.Delete(ctx, unreadKey(session.UserID))
	return nil
}

// notificationPayload shapes a notification for JSON responses.
func notificationPayload(n store.Notification) map[string]any {
	return map[string]any{
		"id":        n.ID,
		"kind":      n.Kind,
		"title":     n.Title,
		"body":      n.Body,
		"isRead":    n.IsRead,
		"createdAt": n.CreatedAt,
	}
}

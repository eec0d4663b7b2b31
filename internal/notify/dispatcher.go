package notify

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hearthhq/hearth/internal/email"
	"github.com/hearthhq/hearth/internal/model"
	"github.com/hearthhq/hearth/internal/push"
)

// UserSource resolves recipients.
type UserSource interface {
	GetByID(id int64) (*model.User, error)
}

// PushSubscriptionSource lists a user's push subscriptions and drops dead
// endpoints.
type PushSubscriptionSource interface {
	ListByUser(userID, familyID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// EmailDispatcher sends notifications through Postmark. When a push service
// is configured the notification is mirrored to the user's push
// subscriptions; push failures are logged but never fail the dispatch, email
// is the channel of record.
type EmailDispatcher struct {
	users  UserSource
	mail   *email.Client
	push   *push.Service
	subs   PushSubscriptionSource
	logger *slog.Logger
}

func NewEmailDispatcher(users UserSource, mail *email.Client, pushSvc *push.Service, subs PushSubscriptionSource, logger *slog.Logger) *EmailDispatcher {
	return &EmailDispatcher{users: users, mail: mail, push: pushSvc, subs: subs, logger: logger}
}

func (d *EmailDispatcher) SendReminder(job ReminderJob) error {
	user, err := d.users.GetByID(job.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	if user == nil {
		return fmt.Errorf("recipient %d not found", job.UserID)
	}

	if err := d.mail.SendChoreReminder(user.Email, job.TaskTitle, string(job.Tier), job.DueDate, job.DaysUntilDue); err != nil {
		return err
	}

	d.mirrorToPush(job.UserID, job.FamilyID, push.Payload{
		Title: "Chore reminder",
		Body:  reminderBody(job),
		URL:   "/tasks",
		Tag:   fmt.Sprintf("task-%d", job.TaskID),
	})
	return nil
}

func (d *EmailDispatcher) SendDigest(payload DigestPayload) error {
	user, err := d.users.GetByID(payload.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	if user == nil {
		return fmt.Errorf("recipient %d not found", payload.UserID)
	}

	summary := email.DigestSummary{
		Date:                 payload.Date,
		CompletedCount:       len(payload.CompletedTasks),
		OverdueCount:         len(payload.OverdueTasks),
		PendingApprovalCount: payload.PendingApprovalCount,
		TotalPointsEarned:    payload.TotalPointsEarned,
	}
	for _, t := range payload.CompletedTasks {
		summary.CompletedTitles = append(summary.CompletedTitles, t.Title)
	}
	for _, t := range payload.OverdueTasks {
		summary.OverdueTitles = append(summary.OverdueTitles, t.Title)
	}

	if err := d.mail.SendDailyDigest(user.Email, summary); err != nil {
		return err
	}

	d.mirrorToPush(payload.UserID, payload.FamilyID, push.Payload{
		Title: "Your daily family summary",
		Body:  fmt.Sprintf("%d done, %d overdue, %d awaiting approval", summary.CompletedCount, summary.OverdueCount, summary.PendingApprovalCount),
		URL:   "/",
		Tag:   "daily-digest",
	})
	return nil
}

func (d *EmailDispatcher) mirrorToPush(userID, familyID int64, payload push.Payload) {
	if d.push == nil || d.subs == nil {
		return
	}

	subs, err := d.subs.ListByUser(userID, familyID)
	if err != nil {
		d.logger.Error("list push subscriptions", "user_id", userID, "error", err)
		return
	}
	for _, sub := range subs {
		if err := d.push.Send(&sub, payload); err != nil {
			if errors.Is(err, push.ErrExpired) {
				d.subs.DeleteByEndpoint(sub.Endpoint)
			} else {
				d.logger.Error("send push", "user_id", userID, "error", err)
			}
		}
	}
}

func reminderBody(job ReminderJob) string {
	switch {
	case job.DaysUntilDue < 0:
		return fmt.Sprintf("%q is overdue", job.TaskTitle)
	case job.DaysUntilDue == 0:
		return fmt.Sprintf("%q is due today", job.TaskTitle)
	case job.DaysUntilDue == 1:
		return fmt.Sprintf("%q is due tomorrow", job.TaskTitle)
	default:
		return fmt.Sprintf("%q is due in %d days", job.TaskTitle, job.DaysUntilDue)
	}
}

package notify

import (
	"context"

	"droneDispatch/internal/apperr"
	"droneDispatch/models"
	"droneDispatch/repository"
)

// Inbox lists and acknowledges the notifications persisted by StoreSink.
type Inbox struct {
	repo repository.NotificationRepositoryI
}

func NewInbox(repo repository.NotificationRepositoryI) *Inbox {
	return &Inbox{repo: repo}
}

// List returns a page of userID's notifications, newest first.
func (i *Inbox) List(ctx context.Context, userID string, offset, limit int) (models.Page, error) {
	items, total, err := i.repo.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return models.Page{}, apperr.Wrap(err, "list notifications")
	}
	projected, err := models.ProjectAll(items, nil)
	if err != nil {
		return models.Page{}, apperr.Wrap(err, "project notifications")
	}
	return models.Page{Total: total, Items: projected}, nil
}

// MarkRead flags one of userID's notifications as read.
func (i *Inbox) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := i.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return apperr.Wrap(err, "mark notification read")
	}
	if !ok {
		return apperr.NotFound("notification %s not found", id)
	}
	return nil
}

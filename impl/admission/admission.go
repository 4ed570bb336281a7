package admission

import (
	"time"

	"tgaccess/entity"
)

// Database is the store snapshot the controller decides on.
type Database interface {
	ActiveCodes() ([]*entity.AccessCode, error)
}

// Controller enforces the cap on concurrently outstanding requesters. Its
// decision is advisory: the store re-applies the same policy inside the
// insert transaction, which is what actually closes the check-then-insert
// race across instances.
type Controller struct {
	db  Database
	max int
}

func New(db Database, maxActive int) *Controller {
	return &Controller{db: db, max: maxActive}
}

// CanIssue reports whether a code may be issued to the requester, along with
// the current active-code count. A requester already holding an active code
// is always allowed: that path is an idempotent re-issue, never a new slot.
func (c *Controller) CanIssue(userId int64) (bool, int, error) {
	codes, err := c.db.ActiveCodes()
	if err != nil {
		return false, 0, err
	}

	now := time.Now()
	owners := make(map[int64]bool)
	count := 0
	holder := false
	for _, code := range codes {
		if !code.IsActive(now) {
			continue
		}
		count++
		owners[code.TelegramUserId] = true
		if code.TelegramUserId == userId {
			holder = true
		}
	}

	if holder {
		return true, count, nil
	}
	return len(owners) < c.max, count, nil
}

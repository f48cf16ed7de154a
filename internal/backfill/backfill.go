package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/nohow2117/gotracker/internal/botdetect"
	"github.com/nohow2117/gotracker/internal/models"
)

const doneKey = "bot_backfill_done"

// ErrAlreadyDone marks a backfill that already ran to completion. Call Reset
// first to run it again.
var ErrAlreadyDone = errors.New("bot flag backfill already completed")

type Result struct {
	Clicks int `json:"clicks"`
	Hits   int `json:"hits"`
}

// Run classifies every click and hit row whose bot flag was never set, then
// records completion. The job is idempotent while interrupted: flags are
// written row by row, and the done marker is only set at the end. Once the
// marker exists, Run refuses to touch anything.
func Run(ctx context.Context, db *sql.DB, classifier *botdetect.Classifier) (Result, error) {
	done, err := models.GetSetting(db, doneKey)
	if err != nil {
		return Result{}, err
	}
	if done != "" {
		return Result{}, ErrAlreadyDone
	}

	var res Result

	clicks, err := models.SelectUnflaggedClicks(db)
	if err != nil {
		return res, err
	}
	for _, e := range clicks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := models.UpdateClickBotFlag(db, e.ID, classify(ctx, classifier, e)); err != nil {
			return res, err
		}
		res.Clicks++
	}

	hits, err := models.SelectUnflaggedHits(db)
	if err != nil {
		return res, err
	}
	for _, e := range hits {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := models.UpdateHitBotFlag(db, e.ID, classify(ctx, classifier, e)); err != nil {
			return res, err
		}
		res.Hits++
	}

	if err := models.SetSetting(db, doneKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return res, fmt.Errorf("mark backfill done: %w", err)
	}
	return res, nil
}

// Reset clears the completion marker so Run can execute again.
func Reset(db *sql.DB) error {
	return models.SetSetting(db, doneKey, "")
}

func classify(ctx context.Context, classifier *botdetect.Classifier, e models.UnflaggedEvent) bool {
	var ip string
	if len(e.IP) > 0 {
		ip = net.IP(e.IP).String()
	}
	return classifier.Classify(ctx, e.UserAgent, ip)
}

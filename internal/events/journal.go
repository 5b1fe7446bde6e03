package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Journal appends published envelopes to the events table. It is an audit
// log only; nothing replays it to sessions.
type Journal struct {
	DB  *sql.DB
	Now func() time.Time
}

// Append stores env and returns the row id.
func (j Journal) Append(ctx context.Context, env Envelope, actor string) (int64, error) {
	if j.Now == nil {
		j.Now = time.Now
	}
	ts := j.Now().UTC().Format(time.RFC3339Nano)
	payload := string(env.Payload)
	if payload == "" {
		payload = "{}"
	}
	res, err := j.DB.ExecContext(ctx, `INSERT INTO events(uid,ts,type,actor,payload_json) VALUES (?,?,?,?,?)`,
		env.ID, ts, string(env.Type), nullable(actor), payload)
	if err != nil {
		return 0, fmt.Errorf("append %s event: %w", env.Type, err)
	}
	return res.LastInsertId()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

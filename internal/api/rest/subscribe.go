package rest

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/streambox/internal/app/notification"
)

// maxEventSize bounds a single SSE data line. Queue snapshots can be large.
const maxEventSize = 4 << 20

// Subscribe streams notifications to fn until ctx is done, the server closes
// the stream or fn returns an error. The first notification is the current state.
// When types are given the server only sends those afterwards.
func (c *Client) Subscribe(ctx context.Context, fn func(*notification.Notification) error, types ...notification.Type) error {
	path := "/events"
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		path += "?types=" + url.QueryEscape(strings.Join(names, ","))
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives any request timeout.
	streaming := *c.http
	streaming.Timeout = 0
	resp, err := streaming.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var n notification.Notification
			if err := json.Unmarshal([]byte(data.String()), &n); err != nil {
				return errors.Wrap(err, "failed to decode event")
			}
			data.Reset()
			if err := fn(&n); err != nil {
				return err
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// id, event and comment lines carry nothing the payload lacks.
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "event stream")
	}
	return ctx.Err()
}

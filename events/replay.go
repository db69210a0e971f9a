package events

import (
	"context"
	"sort"
	"time"
)

// ReplayCadence is the inter-event pause used to preserve the visual
// cadence a live stream would have had (§8 "Replay cadence: inter-event
// sleep of ~50 ms").
const ReplayCadence = 50 * time.Millisecond

// timelineItem is one historical record normalized to a single timeline
// so thinkingEvents, split toolExecutions, and messages can be merged and
// re-emitted in timestamp order.
type timelineItem struct {
	ts   time.Time
	emit func() Event
}

// Replay re-emits elementID's persisted history to a single observer, in
// timestamp order, pausing ReplayCadence between events. It never
// touches the live Broadcaster's observer set — replay is always
// directed only to the requesting observer (§4.5).
//
// toolExecutions are split into synthetic task.tool.start / task.tool.end
// events so replay looks identical to having observed the run live.
func Replay(ctx context.Context, store Store, elementID string, to Observer) error {
	threadID, err := store.ThreadID(elementID)
	if err != nil {
		return err
	}

	thinking, err := store.ThinkingEvents(threadID)
	if err != nil {
		return err
	}
	tools, err := store.ToolExecutions(threadID)
	if err != nil {
		return err
	}
	messages, err := store.Messages(threadID)
	if err != nil {
		return err
	}

	var timeline []timelineItem

	for _, th := range thinking {
		th := th
		timeline = append(timeline, timelineItem{
			ts: th.Timestamp,
			emit: func() Event {
				return New("task.thinking", elementID, map[string]any{"message": th.Message})
			},
		})
	}

	for _, tc := range tools {
		tc := tc
		timeline = append(timeline, timelineItem{
			ts: tc.StartTime,
			emit: func() Event {
				return New("task.tool.start", elementID, map[string]any{"toolName": tc.ToolName, "args": tc.Args})
			},
		})
		if tc.Status == ToolComplete {
			timeline = append(timeline, timelineItem{
				ts: tc.EndTime,
				emit: func() Event {
					return New("task.tool.end", elementID, map[string]any{"toolName": tc.ToolName, "result": tc.Result})
				},
			})
		}
	}

	for _, m := range messages {
		m := m
		timeline = append(timeline, timelineItem{
			ts: m.UpdatedAt,
			emit: func() Event {
				return New("text.message.chunk", elementID, map[string]any{
					"messageId": m.MessageID,
					"role":      m.Role,
					"content":   m.Content,
					"status":    string(m.Status),
				})
			},
		})
	}

	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].ts.Before(timeline[j].ts) })

	for i, item := range timeline {
		if err := to.Send(item.emit()); err != nil {
			return err
		}
		if i < len(timeline)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(ReplayCadence):
			}
		}
	}
	return nil
}

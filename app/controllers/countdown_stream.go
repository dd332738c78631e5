package controllers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp"

	"github.com/ManuelReschke/PropertyDesk/internal/pkg/countdown"
)

type countdownPayload struct {
	Status      string `json:"status"`
	Plan        string `json:"plan"`
	Text        string `json:"text"`
	RemainingMs int64  `json:"remaining_ms"`
}

// HandleCountdown streams the remaining time of the current grant as server
// sent events. After expiry the entitlement is evaluated again; the stream
// follows a new grant or ends.
func (ec *EntitlementController) HandleCountdown(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("user"))
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_user", "message": "query parameter user is required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	eff, err := ec.svc.Evaluate(ctx, userID)
	cancel()
	if err != nil {
		return ec.degraded(c, userID, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	interval := ec.interval
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		plan := string(eff.PlanID)
		if !eff.IsLive() || eff.EndsAt == nil {
			_ = writeEvent(w, countdown.KindExpired, countdownPayload{Status: string(eff.Status), Plan: plan, Text: countdown.Format(0)})
			return
		}

		streamCtx, stop := context.WithCancel(context.Background())
		defer stop()

		presenter := countdown.New(countdown.WithInterval(interval))
		defer presenter.Stop()
		status := string(eff.Status)

		for ev := range presenter.Start(streamCtx, *eff.EndsAt) {
			payload := countdownPayload{Status: status, Plan: plan, Text: ev.Text, RemainingMs: ev.Remaining.Milliseconds()}
			if ev.Kind == countdown.KindExpired {
				payload.Status = "expired"
			}
			if err := writeEvent(w, ev.Kind, payload); err != nil {
				// client went away
				return
			}
			if ev.Kind != countdown.KindExpired {
				continue
			}

			evalCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			next, err := ec.svc.Evaluate(evalCtx, userID)
			cancel()
			if err != nil {
				log.Warnf("countdown: re-evaluating %s failed: %v", userID, err)
				return
			}
			if !next.IsLive() || next.EndsAt == nil {
				return
			}
			plan, status = string(next.PlanID), string(next.Status)
			presenter.Reset(*next.EndsAt)
		}
	}))
	return nil
}

func writeEvent(w *bufio.Writer, kind countdown.Kind, payload countdownPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, data); err != nil {
		return err
	}
	return w.Flush()
}

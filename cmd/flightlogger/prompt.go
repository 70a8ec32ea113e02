package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"flightlogger/pkg/flight"
	"flightlogger/pkg/geo"
	"flightlogger/pkg/session"
)

const (
	resumeAsk    = "ask"
	resumeAlways = "always"
	resumeNever  = "never"
)

// answerTimeout bounds every interactive question so an unattended logger
// keeps running.
const answerTimeout = 60 * time.Second

func validResume(mode string) bool {
	switch mode {
	case resumeAsk, resumeAlways, resumeNever:
		return true
	}
	return false
}

// prompter asks questions on the terminal. Lines are read by one goroutine
// for the lifetime of ctx.
type prompter struct {
	out     io.Writer
	lines   <-chan string
	timeout time.Duration
}

func newPrompter(ctx context.Context, in io.Reader, out io.Writer) *prompter {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return &prompter{out: out, lines: lines, timeout: answerTimeout}
}

// ask prints question and waits for one line. ok is false on timeout,
// end of input, or cancellation.
func (p *prompter) ask(ctx context.Context, question string) (answer string, ok bool) {
	fmt.Fprint(p.out, question)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case line, open := <-p.lines:
		return line, open
	case <-timer.C:
		fmt.Fprintln(p.out)
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

// airport is the engine's manual resolution hook.
func (p *prompter) airport(ctx context.Context, leg flight.Leg, pos geo.Point) string {
	q := fmt.Sprintf("No airport found near %.4f, %.4f. Enter %s ICAO (blank to skip): ", pos.Lat, pos.Lon, leg)
	answer, ok := p.ask(ctx, q)
	if !ok {
		slog.Info("No manual airport entered", "leg", leg)
		return ""
	}
	return answer
}

// confirm asks a yes/no question. Anything but an explicit no counts as yes.
func (p *prompter) confirm(ctx context.Context, question string) bool {
	answer, _ := p.ask(ctx, question+" [Y/n]: ")
	switch strings.ToLower(answer) {
	case "n", "no":
		return false
	}
	return true
}

// offerResume restores an interrupted flight according to mode. A declined
// session is cleared so it is not offered again.
func offerResume(ctx context.Context, eng *flight.Engine, sessions *session.Store, p *prompter, mode string) {
	if mode == resumeNever {
		return
	}
	rec, ok := sessions.Load(ctx)
	if !ok {
		return
	}

	if mode == resumeAsk {
		q := fmt.Sprintf("Resume flight from %s started %s ago?",
			rec.Departure.Code(), time.Since(rec.StartedAt).Round(time.Minute))
		if !p.confirm(ctx, q) {
			if err := sessions.Clear(ctx); err != nil {
				slog.Warn("Failed to clear declined session", "error", err)
			}
			slog.Info("Interrupted flight discarded", "id", rec.ID)
			return
		}
	}

	eng.Resume(ctx)
}

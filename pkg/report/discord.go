// Package report delivers finished flight reports.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // airport timezones must resolve on hosts without a zoneinfo database

	"flightlogger/pkg/flight"
)

// ErrNoWebhook is returned when the Discord sink has no webhook configured.
var ErrNoWebhook = errors.New("discord webhook not configured")

// Embed colors by landing quality.
const (
	ColorButter  = 0x00FF00
	ColorHard    = 0xFF8000
	ColorCrash   = 0xFF0000
	ColorDefault = 0x0099FF
)

const (
	embedTitle  = "🛫 Flight Report - GeoFS"
	embedFooter = "GeoFS Flight Logger"
	timeLayout  = "02 Jan 2006 15:04"
)

// Poster sends a request body to a URL.
type Poster interface {
	Post(ctx context.Context, u string, body []byte, contentType string) ([]byte, error)
}

// Message is a Discord webhook payload.
type Message struct {
	Embeds []Embed `json:"embeds"`
}

// Embed is a Discord rich embed.
type Embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []EmbedField `json:"fields"`
	Timestamp string       `json:"timestamp"`
	Footer    EmbedFooter  `json:"footer"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// Discord posts reports to a webhook as an embed.
type Discord struct {
	client  Poster
	webhook string
	now     func() time.Time
}

// NewDiscord creates a Discord sink.
func NewDiscord(client Poster, webhook string) *Discord {
	return &Discord{
		client:  client,
		webhook: strings.TrimSpace(webhook),
		now:     time.Now,
	}
}

// Deliver implements flight.Sink.
func (d *Discord) Deliver(ctx context.Context, r flight.Report) error {
	if d.webhook == "" {
		return ErrNoWebhook
	}

	body, err := json.Marshal(BuildMessage(&r, d.now()))
	if err != nil {
		return fmt.Errorf("failed to encode discord message: %w", err)
	}
	if _, err := d.client.Post(ctx, d.webhook, body, "application/json"); err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}

// BuildMessage renders a report as a webhook payload.
func BuildMessage(r *flight.Report, now time.Time) Message {
	return Message{Embeds: []Embed{{
		Title: embedTitle,
		Color: Color(r.LandingQuality),
		Fields: []EmbedField{
			{
				Name:  "✈️ Flight Information",
				Value: fmt.Sprintf("**Pilot**: %s\n**Aircraft**: %s", r.Pilot, r.AircraftType),
			},
			{
				Name:   "📍 Route",
				Value:  fmt.Sprintf("**Departure**: %s\n**Arrival**: %s", r.DepartureICAO, r.ArrivalICAO),
				Inline: true,
			},
			{
				Name:   "⏱️ Duration",
				Value:  fmt.Sprintf("**Flight Time**: %d mins", r.DurationMinutes),
				Inline: true,
			},
			{
				Name: "📊 Flight Data",
				Value: fmt.Sprintf("**V/S**: %.1f fpm\n**G-Force**: %.2f\n**TAS**: %.1f kts\n**GS**: %.1f kts",
					r.VerticalSpeedFPM, r.GForce, r.TrueAirSpeedKnots, r.GroundSpeedKnots),
				Inline: true,
			},
			{
				Name:   "🏁 Landing Quality",
				Value:  fmt.Sprintf("**%s**", r.LandingQuality),
				Inline: true,
			},
			{
				Name: "🕓 Times",
				Value: fmt.Sprintf("**Takeoff**: %s\n**Landing**: %s",
					FormatLocal(r.TakeoffAt, r.DepartureTimezone), FormatLocal(r.LandingAt, r.ArrivalTimezone)),
			},
		},
		Timestamp: now.UTC().Format(time.RFC3339),
		Footer:    EmbedFooter{Text: embedFooter},
	}}}
}

// Color maps a landing quality to its embed color.
func Color(q flight.Quality) int {
	switch q {
	case flight.QualityButter:
		return ColorButter
	case flight.QualityHard:
		return ColorHard
	case flight.QualityCrash:
		return ColorCrash
	default:
		return ColorDefault
	}
}

// FormatLocal formats t in the given IANA zone with its abbreviation,
// falling back to UTC for an empty or unknown zone.
func FormatLocal(t time.Time, tz string) string {
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return t.In(loc).Format(timeLayout + " MST")
		}
	}
	return t.UTC().Format(timeLayout) + " UTC"
}

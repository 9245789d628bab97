package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"cashstash/internal/core"
	"cashstash/internal/storage"
)

type reportStore interface {
	ListByUser(ctx context.Context, userID string) ([]core.Transaction, error)
	UserByEmail(ctx context.Context, email string) (storage.User, error)
}

type report struct {
	UserID      string    `json:"user_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"transactions"`
	core.Stats
}

// resolveUser returns userID as is, or looks the user up by email.
func resolveUser(ctx context.Context, store reportStore, userID, email string) (string, error) {
	if userID = strings.TrimSpace(userID); userID != "" {
		return userID, nil
	}
	u, err := store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", fmt.Errorf("look up %q: %w", email, err)
	}
	return u.ID, nil
}

func buildReport(ctx context.Context, store reportStore, userID string, now time.Time) (report, error) {
	records, err := store.ListByUser(ctx, userID)
	if err != nil {
		return report{}, fmt.Errorf("list transactions: %w", err)
	}
	return report{
		UserID:      userID,
		GeneratedAt: now.UTC(),
		Count:       len(records),
		Stats:       core.ComputeStats(records),
	}, nil
}

func writeText(w io.Writer, r report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "User\t%s\n", r.UserID)
	fmt.Fprintf(tw, "Transactions\t%d\n", r.Count)
	fmt.Fprintf(tw, "Income\t%s\n", core.FormatLKR(r.Totals.Income))
	fmt.Fprintf(tw, "Expense\t%s\n", core.FormatLKR(r.Totals.Expense))
	fmt.Fprintf(tw, "Balance\t%s\n", core.FormatLKR(r.Totals.Balance))
	fmt.Fprintf(tw, "Top category\t%s\n", r.TopCategory)
	fmt.Fprintf(tw, "Savings ratio\t%.1f%%\n", r.SavingsRatio)
	fmt.Fprintf(tw, "Daily average\t%s\n", core.FormatLKR(r.DailyAverage))
	if len(r.Breakdown) > 0 {
		fmt.Fprintln(tw, "\nCategory\tAmount\tShare")
		total := r.Breakdown.Total()
		for _, c := range r.Breakdown {
			fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", c.Name, core.FormatLKR(c.Amount), c.Amount/total*100)
		}
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, r report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

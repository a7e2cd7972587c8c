package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

func TestShouldInsertDateSeparator(t *testing.T) {
	loc := time.UTC
	ts := time.Date(2026, 10, 19, 8, 0, 0, 0, loc)

	assert.True(t, ShouldInsertDateSeparator(ts, nil, loc), "empty log")
	assert.False(t, ShouldInsertDateSeparator(ts, &domain.DateSeparator{Date: ts}, loc), "after separator")

	sameDay := &domain.MessageEntry{Message: &domain.Message{Timestamp: ts.Add(-7 * time.Hour)}}
	assert.False(t, ShouldInsertDateSeparator(ts, sameDay, loc))

	prevDay := &domain.MessageEntry{Message: &domain.Message{Timestamp: ts.Add(-9 * time.Hour)}}
	assert.True(t, ShouldInsertDateSeparator(ts, prevDay, loc))

	unknown := &domain.MessageEntry{Message: &domain.Message{}}
	assert.True(t, ShouldInsertDateSeparator(ts, unknown, loc), "unknown timestamp")
	assert.True(t, ShouldInsertDateSeparator(ts, &domain.MessageEntry{}, loc), "missing message")
}

func TestShouldInsertDateSeparatorUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	a := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)
	b := time.Date(2026, 10, 19, 16, 0, 0, 0, time.UTC)
	last := &domain.MessageEntry{Message: &domain.Message{Timestamp: a}}

	assert.False(t, ShouldInsertDateSeparator(b, last, time.UTC))
	assert.True(t, ShouldInsertDateSeparator(b, last, tokyo))
}

func TestFormatRelativeDate(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, loc)

	assert.Equal(t, LabelToday, FormatRelativeDate(now, now, loc))
	assert.Equal(t, LabelToday, FormatRelativeDate(now.Add(-10*time.Hour), now, loc))
	assert.Equal(t, LabelYesterday, FormatRelativeDate(now.AddDate(0, 0, -1), now, loc))
	assert.Equal(t, LabelYesterday, FormatRelativeDate(now.Add(-10*time.Hour-time.Minute), now, loc))
	assert.Equal(t, "Sunday, October 11, 2026", FormatRelativeDate(now.AddDate(0, 0, -8), now, loc))
	assert.Equal(t, "Saturday, October 17, 2026", FormatRelativeDate(now.AddDate(0, 0, -2), now, loc))
}

func TestFormatRelativeDateAcrossMonthBoundary(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 11, 1, 0, 30, 0, 0, loc)

	assert.Equal(t, LabelYesterday, FormatRelativeDate(time.Date(2026, 10, 31, 23, 59, 0, 0, loc), now, loc))
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2026, 10, 19, 15, 4, 0, 0, time.UTC)
	assert.Equal(t, "03:04 PM", FormatTime(ts, time.UTC))
}

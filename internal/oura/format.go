package oura

import (
	"fmt"
	"strings"

	"ouramate/internal/domain"
)

// FormatDuration renders seconds as "<H>h<M>m", truncated to whole
// minutes. Nil or zero renders as the placeholder dash.
func FormatDuration(seconds *int) string {
	if seconds == nil || *seconds == 0 {
		return "-"
	}
	h := *seconds / 3600
	m := (*seconds % 3600) / 60
	return fmt.Sprintf("%dh%dm", h, m)
}

func fmtInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}

func fmtTempDeviation(v *float64) string {
	if v == nil {
		return "-"
	}
	if *v > 0 {
		return fmt.Sprintf("+%.1f°", *v)
	}
	return fmt.Sprintf("%.1f°", *v)
}

// ToContext renders a record as compact plain text, one line per section.
// Used both as AI prompt context and for the /week dump.
func ToContext(h domain.HealthRecord) string {
	lines := []string{"📅 Date: " + h.Day}
	if s := h.Sleep; s != nil {
		lines = append(lines, fmt.Sprintf(
			"💤 Sleep: Score %s | Total %s | Deep %s | REM %s | HRV %sms | HR %sbpm (low %s)",
			fmtInt(s.Score), FormatDuration(s.TotalSleep), FormatDuration(s.DeepSleep),
			FormatDuration(s.RemSleep), fmtInt(s.AvgHRV), fmtFloat(s.AvgHR), fmtFloat(s.LowestHR),
		))
	}
	if a := h.Activity; a != nil {
		lines = append(lines, fmt.Sprintf(
			"🏃 Activity: Score %s | Steps %s | Active Cal %s | High %s | Med %s",
			fmtInt(a.Score), fmtInt(a.Steps), fmtInt(a.ActiveCalories),
			FormatDuration(a.HighActivity), FormatDuration(a.MediumActivity),
		))
	}
	if r := h.Readiness; r != nil {
		lines = append(lines, fmt.Sprintf(
			"⚡ Readiness: Score %s | HRV Balance %s | RHR %s | Temp %s | Recovery %s",
			fmtInt(r.Score), fmtInt(r.HRVBalance), fmtInt(r.RestingHR),
			fmtTempDeviation(r.TempDeviation), fmtInt(r.RecoveryIndex),
		))
	}
	return strings.Join(lines, "\n")
}

// ToSummary renders a record with the transport's inline tags, for the
// /sleep and /activity excerpts.
func ToSummary(h domain.HealthRecord) string {
	var parts []string
	if s := h.Sleep; s != nil {
		parts = append(parts, fmt.Sprintf("💤 <b>Sleep Score:</b> %s  |  Total: %s",
			fmtInt(s.Score), FormatDuration(s.TotalSleep)))
		parts = append(parts, fmt.Sprintf("   Deep: %s  |  REM: %s  |  Light: %s",
			FormatDuration(s.DeepSleep), FormatDuration(s.RemSleep), FormatDuration(s.LightSleep)))
		if s.AvgHRV != nil {
			parts = append(parts, fmt.Sprintf("   HRV: %sms  |  HR: %sbpm  |  Lowest HR: %sbpm",
				fmtInt(s.AvgHRV), fmtFloat(s.AvgHR), fmtFloat(s.LowestHR)))
		}
	}
	if a := h.Activity; a != nil {
		parts = append(parts, fmt.Sprintf("🏃 <b>Activity Score:</b> %s  |  Steps: %s",
			fmtInt(a.Score), fmtInt(a.Steps)))
		parts = append(parts, fmt.Sprintf("   Active Cal: %s  |  Total Cal: %s",
			fmtInt(a.ActiveCalories), fmtInt(a.TotalCalories)))
	}
	if r := h.Readiness; r != nil {
		parts = append(parts, fmt.Sprintf("⚡ <b>Readiness Score:</b> %s", fmtInt(r.Score)))
	}
	return strings.Join(parts, "\n")
}

package reminder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MHassaanT/motomind-backend/internal/domain"
)

// renderTemplate substitutes record fields into a workshop-configured
// message template. Supported placeholders: {name}, {bike}, {work},
// {amount}, {date}.
func renderTemplate(tpl string, rec domain.ServiceRecord) string {
	date := ""
	if !rec.NextServiceDate.IsZero() {
		date = rec.NextServiceDate.Format("02 Jan 2006")
	}
	r := strings.NewReplacer(
		"{name}", rec.CustomerName,
		"{bike}", rec.Bike,
		"{work}", rec.Work,
		"{amount}", strconv.FormatInt(rec.Amount, 10),
		"{date}", date,
	)
	return r.Replace(tpl)
}

// FormatReminder builds the service-due message for one record. A non-empty
// template (the ReminderTemplate setting) overrides the built-in wording.
func FormatReminder(rec domain.ServiceRecord, tpl string) string {
	if strings.TrimSpace(tpl) != "" {
		return renderTemplate(tpl, rec)
	}
	var b strings.Builder
	name := rec.CustomerName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hello %s!\n", name)
	if rec.Bike != "" {
		fmt.Fprintf(&b, "Your %s is due for service today.\n", rec.Bike)
	} else {
		b.WriteString("Your bike is due for service today.\n")
	}
	b.WriteString("Visit us any time to book your slot.")
	return b.String()
}

// FormatBill builds the bill message for a finalized record. A non-empty
// template (the BillTemplate setting) overrides the built-in wording.
func FormatBill(rec domain.ServiceRecord, tpl string) string {
	if strings.TrimSpace(tpl) != "" {
		return renderTemplate(tpl, rec)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s!\n", rec.CustomerName)
	if rec.Work != "" {
		fmt.Fprintf(&b, "Work done: %s\n", rec.Work)
	}
	fmt.Fprintf(&b, "Total bill: Rs. %d\n", rec.Amount)
	if !rec.NextServiceDate.IsZero() {
		fmt.Fprintf(&b, "Next service due: %s\n", rec.NextServiceDate.Format("02 Jan 2006"))
	}
	b.WriteString("Thank you for choosing us!")
	return b.String()
}

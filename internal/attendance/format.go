package attendance

import (
	"strings"
	"time"
)

// TimestampLayout is used for the message when the payload has no fecha_hora.
const TimestampLayout = "2006-01-02 15:04:05"

// EventTime is the payload's fecha_hora, or now when it has none.
func (e Event) EventTime(now time.Time) string {
	if e.Timestamp != "" {
		return e.Timestamp
	}
	return now.Format(TimestampLayout)
}

// FormatMessage renders the notification text for ev. now is only consulted
// when the event carries no timestamp of its own.
func FormatMessage(ev Event, now time.Time) string {
	when := ev.EventTime(now)

	var b strings.Builder
	b.WriteString("📋 *Nueva Asistencia Registrada*\n\n")
	b.WriteString("👤 *Nombre:* " + ev.Name + "\n")
	b.WriteString("🏢 *Empresa:* " + ev.Company + "\n")
	if ev.Role != "" {
		b.WriteString("💼 *Cargo:* " + ev.Role + "\n")
	}
	b.WriteString("📅 *Fecha/Hora:* " + when + "\n\n")
	b.WriteString("✅ Ingreso confirmado al evento")

	return b.String()
}

// Package mail composes grievance reports and relays them over SMTP.
package mail

import (
	"fmt"
	"strings"

	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
)

const separator = "--------------------------------"

// Compose renders the plain-text report mailed to the authority. Blank
// optional fields get their placeholder; the maps link needs both coordinates.
func Compose(msg grievanceapp.MailMessage) string {
	location := strings.TrimSpace(msg.DetailedLocation)
	latitude := strings.TrimSpace(msg.Latitude)
	longitude := strings.TrimSpace(msg.Longitude)

	mapsLink := "Location link not available"
	if latitude != "" && longitude != "" {
		mapsLink = fmt.Sprintf("https://www.google.com/maps?q=%s,%s", latitude, longitude)
	}

	var b strings.Builder
	b.WriteString("CIVIC GRIEVANCE REPORT\n")
	b.WriteString(separator + "\n\n")
	b.WriteString("Detailed Location:\n")
	b.WriteString(orDefault(location, "Not provided") + "\n\n")
	b.WriteString("Latitude: " + orDefault(latitude, "N/A") + "\n")
	b.WriteString("Longitude: " + orDefault(longitude, "N/A") + "\n\n")
	b.WriteString("Google Maps Location:\n")
	b.WriteString(mapsLink + "\n\n")
	b.WriteString(separator + "\n")
	b.WriteString("Complaint:\n")
	b.WriteString(msg.Body + "\n\n")
	b.WriteString(separator + "\n")
	b.WriteString("Sent via GrievanceNet")
	return b.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

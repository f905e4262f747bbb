// Package mqtt defines the MQTT topics and payloads exchanged between the
// dispatch service, technician apps and operators. The paho based
// transport lives in infra/mqtt.
package mqtt

import (
	"fmt"
	"strings"
)

const (
	// TechnicianPrefix is the root of every per-technician topic.
	TechnicianPrefix = "technician"
	// AdminAlertTopic receives unmatched job alerts.
	AdminAlertTopic = "admin/alerts/unmatched"
	// JobRequestTopic receives job submissions.
	JobRequestTopic = "jobs/requests"

	// OfferWildcard matches every technician offer.
	OfferWildcard = TechnicianPrefix + "/+/offer"
	// ResponseWildcard matches every technician response.
	ResponseWildcard = TechnicianPrefix + "/+/response"
	// ResultWildcard matches every accept outcome.
	ResultWildcard = TechnicianPrefix + "/+/result"
	// LocationWildcard matches every technician location report.
	LocationWildcard = TechnicianPrefix + "/+/location"
)

// OfferTopic is where a technician receives job offers.
func OfferTopic(technicianID string) string {
	return TechnicianPrefix + "/" + technicianID + "/offer"
}

// ResponseTopic is where a technician answers offers.
func ResponseTopic(technicianID string) string {
	return TechnicianPrefix + "/" + technicianID + "/response"
}

// ResultTopic is where the outcome of an accept is reported back.
func ResultTopic(technicianID string) string {
	return TechnicianPrefix + "/" + technicianID + "/result"
}

// LocationTopic is where a technician reports its position.
func LocationTopic(technicianID string) string {
	return TechnicianPrefix + "/" + technicianID + "/location"
}

// TechnicianFromTopic extracts the id segment of technician/<id>/<leaf>.
func TechnicianFromTopic(topic, leaf string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TechnicianPrefix || parts[2] != leaf || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}
	return parts[1], nil
}

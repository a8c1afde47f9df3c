// Package events provides the internal, in-process notification bus used
// to invalidate caches and notify observers of pipeline state changes.
// This is distinct from internal/streams, which carries the actual
// work items between pipeline stages — events here never leave the
// process.
package events

import (
	"encoding/json"
	"time"
)

// EventType is the closed set of internal notifications the pipeline emits.
type EventType string

const (
	// CompanyProfileChanged fires when the company profile is updated,
	// invalidating the cached keyword-relevance embedding.
	CompanyProfileChanged EventType = "company_profile_changed"

	// SupplierMutated fires when a supplier is created, updated, or its
	// status changes, invalidating the cached dependency graph.
	SupplierMutated EventType = "supplier_mutated"

	// ArticleIngested fires once a normalized article has been committed
	// to the store and published to the stream substrate.
	ArticleIngested EventType = "article_ingested"

	// RiskEventExtracted fires once an article has been scored and
	// propagated into a risk event.
	RiskEventExtracted EventType = "risk_event_extracted"

	// AlertCreated fires when the alerting stage creates a new alert.
	AlertCreated EventType = "alert_created"

	// AlertAcknowledged fires when an operator acknowledges an alert.
	AlertAcknowledged EventType = "alert_acknowledged"

	// ErrorOccurred fires for errors worth surfacing to observers outside
	// the stage that produced them (e.g. the status endpoint).
	ErrorOccurred EventType = "error_occurred"
)

// EventData is the interface every typed event payload implements.
type EventData interface {
	EventType() EventType
}

// CompanyProfileChangedData carries no payload beyond the notification itself.
type CompanyProfileChangedData struct{}

// EventType returns CompanyProfileChanged.
func (d *CompanyProfileChangedData) EventType() EventType { return CompanyProfileChanged }

// SupplierMutatedData identifies which supplier changed.
type SupplierMutatedData struct {
	SupplierID string `json:"supplier_id"`
}

// EventType returns SupplierMutated.
func (d *SupplierMutatedData) EventType() EventType { return SupplierMutated }

// ArticleIngestedData describes a newly committed article.
type ArticleIngestedData struct {
	ArticleID string `json:"article_id"`
	Source    string `json:"source"`
}

// EventType returns ArticleIngested.
func (d *ArticleIngestedData) EventType() EventType { return ArticleIngested }

// RiskEventExtractedData describes a newly scored risk event.
type RiskEventExtractedData struct {
	RiskEventID    string  `json:"risk_event_id"`
	ArticleID      string  `json:"article_id"`
	CompositeScore float64 `json:"composite_score"`
	IsRisk         bool    `json:"is_risk"`
}

// EventType returns RiskEventExtracted.
func (d *RiskEventExtractedData) EventType() EventType { return RiskEventExtracted }

// AlertCreatedData describes a newly fired alert.
type AlertCreatedData struct {
	AlertID      string  `json:"alert_id"`
	SeverityBand string  `json:"severity_band"`
	Score        float64 `json:"score"`
}

// EventType returns AlertCreated.
func (d *AlertCreatedData) EventType() EventType { return AlertCreated }

// AlertAcknowledgedData describes who acknowledged which alert.
type AlertAcknowledgedData struct {
	AlertID string `json:"alert_id"`
	By      string `json:"by"`
}

// EventType returns AlertAcknowledged.
func (d *AlertAcknowledgedData) EventType() EventType { return AlertAcknowledged }

// ErrorEventData carries a stage-reported error worth surfacing.
type ErrorEventData struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// EventType returns ErrorOccurred.
func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }

// GenericEventData is the fallback used when decoding an event whose type
// isn't one of the above (forward compatibility for subscribers reading
// a persisted log of events).
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the type recorded at decode time.
func (d *GenericEventData) EventType() EventType { return d.Type }

// MarshalJSON encodes only the underlying data map.
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON decodes into the underlying data map.
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}

// EventWithData is an envelope carrying a typed payload plus common metadata.
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
	Data      EventData `json:"data"`
}

// MarshalJSON flattens Data into a raw "data" field.
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{Alias: (*Alias)(e)}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON dispatches decoding of the "data" field by event type.
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{Alias: (*Alias)(e)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 {
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case CompanyProfileChanged:
		eventData = &CompanyProfileChangedData{}
	case SupplierMutated:
		eventData = &SupplierMutatedData{}
	case ArticleIngested:
		eventData = &ArticleIngestedData{}
	case RiskEventExtracted:
		eventData = &RiskEventExtractedData{}
	case AlertCreated:
		eventData = &AlertCreatedData{}
	case AlertAcknowledged:
		eventData = &AlertAcknowledgedData{}
	case ErrorOccurred:
		eventData = &ErrorEventData{}
	default:
		var rawData map[string]interface{}
		if err := json.Unmarshal(aux.Data, &rawData); err != nil {
			return err
		}
		e.Data = &GenericEventData{Type: aux.Type, Data: rawData}
		return nil
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}

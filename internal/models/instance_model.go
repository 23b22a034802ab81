package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// InstanceStatus is the state of a tracker instance credential.
type InstanceStatus string

const (
	InstanceActive   InstanceStatus = "active"
	InstanceInactive InstanceStatus = "inactive"
)

// TrackerInstance is the deployed worker for one TikTokAccount. The account's
// document ID is also the instance's document ID, so each account has at most
// one instance. The API key is stored hashed for authentication and sealed for
// admin display; neither form leaves the service as JSON.
type TrackerInstance struct {
	ID               string         `json:"id" firestore:"id" bson:"_id"`
	AccountID        string         `json:"accountId" firestore:"accountId" bson:"accountId"`
	UserID           string         `json:"userId" firestore:"userId" bson:"userId"`
	APIKeyHash       string         `json:"-" firestore:"apiKeyHash" bson:"apiKeyHash"`
	APIKeyCiphertext string         `json:"-" firestore:"apiKeyCiphertext" bson:"apiKeyCiphertext"`
	APIKeyPrefix     string         `json:"apiKeyPrefix" firestore:"apiKeyPrefix" bson:"apiKeyPrefix"`
	InstanceURL      string         `json:"instanceUrl,omitempty" firestore:"instanceUrl,omitempty" bson:"instanceUrl,omitempty"`
	Status           InstanceStatus `json:"status" firestore:"status" bson:"status"`
	LastAccessedAt   *time.Time     `json:"lastAccessedAt,omitempty" firestore:"lastAccessedAt,omitempty" bson:"lastAccessedAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}

// InstanceDataType names a per-account document kept for an instance.
type InstanceDataType string

const (
	DataGiftGroups InstanceDataType = "gift-groups"
	DataConfig     InstanceDataType = "config"
	DataAnalytics  InstanceDataType = "analytics"
)

// InstanceData persists one InstanceDocument. Document holds its JSON encoding
// so every store backend keeps the payload byte-for-byte.
type InstanceData struct {
	ID        string           `json:"id" firestore:"id" bson:"_id"`
	AccountID string           `json:"accountId" firestore:"accountId" bson:"accountId"`
	DataType  InstanceDataType `json:"dataType" firestore:"dataType" bson:"dataType"`
	Document  string           `json:"-" firestore:"document" bson:"document"`
	CreatedAt time.Time        `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}

// InstanceDataID is the document ID of an account's document of type t.
func InstanceDataID(accountID string, t InstanceDataType) string {
	return accountID + "_" + string(t)
}

// InstanceDocument is the closed set of documents an instance can store.
type InstanceDocument interface {
	DataType() InstanceDataType
	isInstanceDocument()
}

// GiftGroups maps a group name to its definition. Definitions are opaque to
// the backend but must be JSON objects.
type GiftGroups map[string]json.RawMessage

// InstanceConfig is a free-form settings object merged key by key.
type InstanceConfig map[string]json.RawMessage

// AnalyticsSnapshot is the latest analytics payload reported by an instance.
type AnalyticsSnapshot json.RawMessage

func (GiftGroups) DataType() InstanceDataType        { return DataGiftGroups }
func (InstanceConfig) DataType() InstanceDataType    { return DataConfig }
func (AnalyticsSnapshot) DataType() InstanceDataType { return DataAnalytics }

func (GiftGroups) isInstanceDocument()        {}
func (InstanceConfig) isInstanceDocument()    {}
func (AnalyticsSnapshot) isInstanceDocument() {}

// MarshalJSON keeps an empty snapshot a valid JSON object.
func (a AnalyticsSnapshot) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return []byte("{}"), nil
	}
	return []byte(a), nil
}

// DefaultInstanceConfig is the config handed to an instance on first load.
func DefaultInstanceConfig() InstanceConfig {
	return InstanceConfig{
		"theme":         json.RawMessage(`"dark"`),
		"language":      json.RawMessage(`"en"`),
		"notifications": json.RawMessage(`true`),
		"autoConnect":   json.RawMessage(`false`),
	}
}

// Merge overlays patch onto c at the top level and returns the result.
func (c InstanceConfig) Merge(patch InstanceConfig) InstanceConfig {
	out := make(InstanceConfig, len(c)+len(patch))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// ParseGiftGroups decodes raw as an object whose values are all objects.
func ParseGiftGroups(raw []byte) (GiftGroups, error) {
	var groups GiftGroups
	if err := json.Unmarshal(raw, &groups); err != nil || groups == nil {
		return nil, fmt.Errorf("groups must be a JSON object")
	}
	for name, def := range groups {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(def, &probe); err != nil || probe == nil {
			return nil, fmt.Errorf("group %q must be a JSON object", name)
		}
	}
	return groups, nil
}

// ParseInstanceConfig decodes raw as a JSON object.
func ParseInstanceConfig(raw []byte) (InstanceConfig, error) {
	var cfg InstanceConfig
	if err := json.Unmarshal(raw, &cfg); err != nil || cfg == nil {
		return nil, fmt.Errorf("config must be a JSON object")
	}
	return cfg, nil
}

// EncodeInstanceDocument renders doc for storage in InstanceData.Document.
func EncodeInstanceDocument(doc InstanceDocument) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode %s document: %w", doc.DataType(), err)
	}
	return string(b), nil
}

// Decode returns the typed document stored in d.
func (d *InstanceData) Decode() (InstanceDocument, error) {
	raw := []byte(d.Document)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch d.DataType {
	case DataGiftGroups:
		groups := GiftGroups{}
		if err := json.Unmarshal(raw, &groups); err != nil {
			return nil, fmt.Errorf("decode gift groups for %s: %w", d.AccountID, err)
		}
		return groups, nil
	case DataConfig:
		cfg := InstanceConfig{}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode config for %s: %w", d.AccountID, err)
		}
		return cfg, nil
	case DataAnalytics:
		return AnalyticsSnapshot(raw), nil
	}
	return nil, fmt.Errorf("unknown instance data type %q", d.DataType)
}

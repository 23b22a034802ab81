package models

import "time"

// AccountStatus is the lifecycle state of a tracked TikTok account.
type AccountStatus string

const (
	AccountPending   AccountStatus = "pending"
	AccountActive    AccountStatus = "active"
	AccountInactive  AccountStatus = "inactive"
	AccountSuspended AccountStatus = "suspended"
)

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountPending, AccountActive, AccountInactive, AccountSuspended:
		return true
	}
	return false
}

// TikTokAccount is a streamer account tracked for a user. Active accounts count
// against the plan's account quota.
type TikTokAccount struct {
	ID                       string        `json:"id" firestore:"id" bson:"_id"`
	UserID                   string        `json:"userId" firestore:"userId" bson:"userId"`
	AccountName              string        `json:"accountName" firestore:"accountName" bson:"accountName"`
	AccountHandle            string        `json:"accountHandle,omitempty" firestore:"accountHandle,omitempty" bson:"accountHandle,omitempty"`
	AccountID                string        `json:"accountId,omitempty" firestore:"accountId,omitempty" bson:"accountId,omitempty"` // External TikTok ID, unique when set
	Status                   AccountStatus `json:"status" firestore:"status" bson:"status"`
	GiftGroupsCount          int           `json:"giftGroupsCount" firestore:"giftGroupsCount" bson:"giftGroupsCount"`
	LastSyncedAt             *time.Time    `json:"lastSyncedAt,omitempty" firestore:"lastSyncedAt,omitempty" bson:"lastSyncedAt,omitempty"`
	AccessURL                string        `json:"accessUrl,omitempty" firestore:"accessUrl,omitempty" bson:"accessUrl,omitempty"`
	DisconnectionRequested   bool          `json:"disconnectionRequested" firestore:"disconnectionRequested" bson:"disconnectionRequested"`
	DisconnectionRequestedAt *time.Time    `json:"disconnectionRequestedAt,omitempty" firestore:"disconnectionRequestedAt,omitempty" bson:"disconnectionRequestedAt,omitempty"`
	CreatedAt                time.Time     `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt                time.Time     `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}

// Package events publishes progression notifications (mission completed,
// reward claimed) to interested listeners such as push or realtime gateways.
package events

import (
	"context"
	"time"

	"codequest/internal/models"
)

type Kind string

const (
	KindMissionCompleted Kind = "mission.completed"
	KindRewardClaimed    Kind = "reward.claimed"
)

type Notification struct {
	Kind      Kind           `json:"kind"`
	UserID    string         `json:"userId"`
	MissionID string         `json:"missionId"`
	Objective string         `json:"objective,omitempty"`
	Reward    *models.Reward `json:"reward,omitempty"`
	At        time.Time      `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, n Notification) error
	// Subscribe delivers notifications to fn until ctx is done.
	Subscribe(ctx context.Context, fn func(Notification)) error
	Close() error
}

type noopBus struct{}

// NewNoopBus returns a bus that drops every notification
func NewNoopBus() Bus { return noopBus{} }

func (noopBus) Publish(context.Context, Notification) error         { return nil }
func (noopBus) Subscribe(context.Context, func(Notification)) error { return nil }
func (noopBus) Close() error                                         { return nil }

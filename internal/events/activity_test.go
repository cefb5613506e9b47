package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/activityplanner/internal/domain"
)

func TestRoutes(t *testing.T) {
	for _, eventType := range []string{TypeActivityCreated, TypeActivityDeleted} {
		route, err := RouteFor(eventType)
		require.NoError(t, err)
		require.Equal(t, TopicActivityEvents, route.Topic)
		require.Equal(t, "activity_events-value", route.SchemaSubject)
	}

	route, err := RouteFor(TypeActivityStatusChanged)
	require.NoError(t, err)
	require.Equal(t, TopicActivityStateChanged, route.Topic)

	_, err = RouteFor("activity.archived")
	require.Error(t, err)
}

func TestReplacePayload(t *testing.T) {
	at := time.Date(2025, time.March, 1, 2, 0, 0, 0, time.UTC)
	activity := domain.Activity{ID: "a-1", Status: domain.StatusInProgress, Version: 3}
	entry := domain.HistoryEntry{
		ActivityID: "a-1",
		Action:     domain.ActionApprove,
		From:       domain.StatusPending,
		To:         domain.StatusInProgress,
		Actor:      "Trần Thị B",
		At:         at,
	}

	eventType, payload := ForReplace(activity, entry)
	require.Equal(t, TypeActivityStatusChanged, eventType)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"activity_id": "a-1",
		"action": "approve",
		"from": "pending",
		"to": "inprogress",
		"actor": "Trần Thị B",
		"occurred_at": "2025-03-01T02:00:00Z",
		"version": 3
	}`, string(raw))
}

func TestDeletePayloadUsesEntry(t *testing.T) {
	eventType, payload := ForDelete(domain.HistoryEntry{ActivityID: "a-2", From: domain.StatusDraft, Actor: "u"})
	require.Equal(t, TypeActivityDeleted, eventType)
	deleted, ok := payload.(ActivityDeleted)
	require.True(t, ok)
	require.Equal(t, "a-2", deleted.ActivityID)
	require.Equal(t, "draft", deleted.From)
}

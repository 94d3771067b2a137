package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/tourgen/internal/models"
)

func TestSubcommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"migrate", "trigger", "reconcile", "sequence", "sweep", "run-clip"} {
		assert.Contains(t, names, want)
	}
}

func TestTriggerRequiresUser(t *testing.T) {
	f := triggerCmd.Flags().Lookup("user")
	require.NotNil(t, f)
	assert.Equal(t, []string{"true"}, f.Annotations[cobra.BashCompOneRequiredFlag])
}

func TestArgsValidation(t *testing.T) {
	assert.Error(t, triggerCmd.Args(triggerCmd, nil))
	assert.NoError(t, reconcileCmd.Args(reconcileCmd, []string{uuid.NewString()}))
	assert.Error(t, runClipCmd.Args(runClipCmd, []string{"a", "b"}))
}

func TestPrintSequenceUsesCustomLabel(t *testing.T) {
	label := "Sunny Lounge"
	clips := []models.VideoClip{
		{ID: uuid.New(), SequenceOrder: 1, RoomType: models.RoomExterior, Status: models.ClipStatusPending},
		{ID: uuid.New(), SequenceOrder: 2, RoomType: models.RoomLivingRoom, RoomLabel: &label, Status: models.ClipStatusCompleted},
	}
	assert.NotPanics(t, func() { printSequence(clips) })
}

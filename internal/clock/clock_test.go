// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package clock_test

import (
	"testing"
	"time"

	"codeberg.org/krishimitra/krishi-auth/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestTimeClocker_Now(t *testing.T) {
	c := clock.New()

	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
	assert.Equal(t, time.UTC, c.Now().Location())
}

func TestFake_Advance(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	c.Advance(5 * time.Minute)

	assert.Equal(t, start.Add(5*time.Minute), c.Now())
}

func TestFake_Set(t *testing.T) {
	c := clock.NewFake(time.Time{})
	target := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

	c.Set(target)

	assert.Equal(t, target, c.Now())
}

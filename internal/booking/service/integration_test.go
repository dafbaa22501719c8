//go:build integration

package service

import (
	"testing"

	"github.com/smallbiznis/marketplace/internal/testutil/enginetest"
)

func TestPostgresConcurrentCreatesNeverOverbookSlot(t *testing.T) {
	f := fixtureOn(t, enginetest.NewPostgres(t), false)
	assertCapacityHeld(t, f, f.bookConcurrently(12))
}

package storage_test

import (
	"testing"

	"xdao.co/diamond/storage"
	"xdao.co/diamond/storage/testkit"
)

func TestMemoryCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.NewMemoryCAS()
	})
}

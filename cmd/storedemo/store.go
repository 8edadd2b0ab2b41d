package main

import (
	"os"

	"github.com/malzahar-project/dbstorage/record"
)

func openOrCreateStore(path string) (*record.Store, error) {
	if _, err := os.Stat(path); err == nil {
		return record.Open(path, demoSchema)
	}
	return record.Create(path, demoSchema)
}

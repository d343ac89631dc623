package monitor

import "time"

type Status struct {
	PostgreSQL  bool      `json:"postgresql"`
	Redis       bool      `json:"redis"`
	Storage     bool      `json:"storage"`
	StorageKeys int       `json:"storage_keys"`
	LastCheck   time.Time `json:"last_check"`
}

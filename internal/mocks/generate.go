// Package mocks provides gomock implementations of the engine's outbound ports.
//
// To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notifier_mock.go laundry-jobs-backend/internal/notification Notifier

// Package mocks provides gomock mocks for the identity ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockCredentialStore(ctrl)
//	store.EXPECT().FindByEmail(gomock.Any(), "a@example.com").Return(rec, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_store_mock.go github.com/ofirc298/GUIDESSITE2025/internal/ports CredentialStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_codec_mock.go github.com/ofirc298/GUIDESSITE2025/internal/ports TokenCodec

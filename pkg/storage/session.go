package storage

import (
	"context"
	"fmt"
	"time"
)

// maxMintAttempts bounds retries when a freshly minted id already exists.
const maxMintAttempts = 3

// SessionSaver is the part of a Backend GenerateSession depends on.
type SessionSaver interface {
	SaveSessionData(ctx context.Context, s *Session) (bool, error)
}

// GenerateSession mints a session id for user and saves it through saver.
// Backends implement their GenerateSession method with it.
func GenerateSession(ctx context.Context, saver SessionSaver, minter TokenMinter, user UserAccount, now time.Time) (*Session, error) {
	for range maxMintAttempts {
		id, err := minter.Mint(user.ID)
		if err != nil {
			return nil, fmt.Errorf("mint session id: %w", err)
		}

		s := &Session{
			ID:      id,
			User:    user,
			Created: time.UnixMilli(now.UnixMilli()).UTC(),
		}
		ok, err := saver.SaveSessionData(ctx, s)
		if err != nil {
			return nil, err
		}
		if ok {
			return s, nil
		}
	}
	return nil, ErrSessionCollision
}

// ProfileOf derives the stored profile view of an account linked under sub.
func ProfileOf(account *UserAccount, sub string) *OAuth2Profile {
	return &OAuth2Profile{
		Sub:           sub,
		Email:         account.Email,
		EmailVerified: account.EmailVerified,
		Name:          account.DisplayName,
		Picture:       account.ProfilePic,
	}
}

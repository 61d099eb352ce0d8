package athletes_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pacemates/paceline/internal/athletes"
	"github.com/pacemates/paceline/internal/strava"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"
)

type countingRefresher struct {
	calls atomic.Int64
	token *oauth2.Token
	err   error
}

func (r *countingRefresher) Refresh(_ context.Context, _ string) (*oauth2.Token, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.token, nil
}

func TestKeeper_ValidTokenNotRefreshed(t *testing.T) {
	ctrl := gomock.NewController(t)
	storeMock := athletes.NewMockStore(ctrl)
	refresher := &countingRefresher{}
	keeper := athletes.NewKeeper(storeMock, refresher, nil)

	athlete := &athletes.Athlete{
		ID: 7,
		Token: athletes.TokenRecord{
			AccessToken:  "still-valid",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		},
	}
	storeMock.EXPECT().Get(gomock.Any(), int64(7)).Return(athlete, nil).Times(1)

	token, err := keeper.FreshAccessToken(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "still-valid", token)
	assert.Zero(t, refresher.calls.Load())
}

func TestKeeper_ExpiredTokenRefreshedAndSaved(t *testing.T) {
	ctrl := gomock.NewController(t)
	storeMock := athletes.NewMockStore(ctrl)
	refresher := &countingRefresher{
		token: &oauth2.Token{
			AccessToken:  "fresh-access",
			RefreshToken: "rotated-refresh",
			Expiry:       time.Now().Add(6 * time.Hour),
		},
	}
	keeper := athletes.NewKeeper(storeMock, refresher, nil)

	athlete := &athletes.Athlete{
		ID: 7,
		Token: athletes.TokenRecord{
			AccessToken:  "expired-access",
			RefreshToken: "old-refresh",
			ExpiresAt:    time.Now().Add(-time.Hour).Unix(),
		},
	}
	storeMock.EXPECT().Get(gomock.Any(), int64(7)).Return(athlete, nil).Times(1)
	storeMock.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, saved *athletes.Athlete) error {
			assert.Equal(t, "fresh-access", saved.Token.AccessToken)
			assert.Equal(t, "rotated-refresh", saved.Token.RefreshToken)
			return nil
		}).Times(1)

	token, err := keeper.FreshAccessToken(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", token)
	assert.Equal(t, int64(1), refresher.calls.Load())
}

func TestKeeper_RefreshKeepsOldRefreshTokenWhenNoneReturned(t *testing.T) {
	ctrl := gomock.NewController(t)
	storeMock := athletes.NewMockStore(ctrl)
	refresher := &countingRefresher{
		token: &oauth2.Token{
			AccessToken: "fresh-access",
			Expiry:      time.Now().Add(6 * time.Hour),
		},
	}
	keeper := athletes.NewKeeper(storeMock, refresher, nil)

	athlete := &athletes.Athlete{
		ID: 7,
		Token: athletes.TokenRecord{
			AccessToken:  "expired-access",
			RefreshToken: "old-refresh",
			ExpiresAt:    time.Now().Add(-time.Hour).Unix(),
		},
	}
	storeMock.EXPECT().Get(gomock.Any(), int64(7)).Return(athlete, nil)
	storeMock.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, saved *athletes.Athlete) error {
			assert.Equal(t, "old-refresh", saved.Token.RefreshToken)
			return nil
		})

	_, err := keeper.FreshAccessToken(context.Background(), 7)
	require.NoError(t, err)
}

func TestKeeper_RefreshFailureIsTerminal(t *testing.T) {
	ctrl := gomock.NewController(t)
	storeMock := athletes.NewMockStore(ctrl)
	refresher := &countingRefresher{err: strava.ErrUnauthorized}
	keeper := athletes.NewKeeper(storeMock, refresher, nil)

	athlete := &athletes.Athlete{
		ID: 7,
		Token: athletes.TokenRecord{
			RefreshToken: "revoked",
			ExpiresAt:    time.Now().Add(-time.Hour).Unix(),
		},
	}
	// exactly one Get, one refresh attempt, no save, no retry
	storeMock.EXPECT().Get(gomock.Any(), int64(7)).Return(athlete, nil).Times(1)

	_, err := keeper.FreshAccessToken(context.Background(), 7)
	require.ErrorIs(t, err, strava.ErrUnauthorized)
	assert.Equal(t, int64(1), refresher.calls.Load())
}

// Concurrent requests for the same athlete must trigger at most one refresh;
// the rest reuse the token the first one persisted.
func TestKeeper_ConcurrentRequestsSingleRefresh(t *testing.T) {
	store := athletes.NewFileStore(filepath.Join(t.TempDir(), "athletes.json"))
	ctx := context.Background()

	athlete := &athletes.Athlete{
		ID: 7,
		Token: athletes.TokenRecord{
			AccessToken:  "expired-access",
			RefreshToken: "old-refresh",
			ExpiresAt:    time.Now().Add(-time.Hour).Unix(),
		},
	}
	require.NoError(t, store.Save(ctx, athlete))

	refresher := &countingRefresher{
		token: &oauth2.Token{
			AccessToken:  "fresh-access",
			RefreshToken: "rotated-refresh",
			Expiry:       time.Now().Add(6 * time.Hour),
		},
	}
	keeper := athletes.NewKeeper(store, refresher, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := keeper.FreshAccessToken(ctx, 7)
			assert.NoError(t, err)
			assert.Equal(t, "fresh-access", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), refresher.calls.Load())

	saved, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "rotated-refresh", saved.Token.RefreshToken)
}

package athletes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pacemates/paceline/internal/telemetry/metrics"
	"github.com/pacemates/paceline/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
)

// DefaultExpirySkew - a token this close to expiry is refreshed eagerly.
const DefaultExpirySkew = 30 * time.Second

// TokenRefresher mints a new token from a refresh token; implemented by
// strava.Authenticator.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Keeper hands out valid access tokens, refreshing expired ones through the
// Strava authenticator and persisting the result. The check-refresh-write
// sequence is serialized per athlete: two concurrent requests for the same
// athlete can't race a refresh, the second reuses the token the first
// obtained. Different athletes do not contend.
type Keeper struct {
	store          Store
	refresher      TokenRefresher
	skew           time.Duration
	nowFn          func() time.Time
	metricsManager *metrics.Manager

	mu         sync.Mutex
	perAthlete map[int64]*sync.Mutex
}

func NewKeeper(store Store, refresher TokenRefresher, metricsManager *metrics.Manager) *Keeper {
	return &Keeper{
		store:          store,
		refresher:      refresher,
		skew:           DefaultExpirySkew,
		nowFn:          time.Now,
		metricsManager: metricsManager,
		perAthlete:     make(map[int64]*sync.Mutex),
	}
}

// FreshAccessToken returns a valid access token for the athlete, refreshing
// it first when expired. A failed refresh is terminal for the request - no
// retries, the caller prompts re-authentication.
func (k *Keeper) FreshAccessToken(ctx context.Context, athleteID int64) (token string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "tokenKeeper.freshAccessToken")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("athlete.id", athleteID))

	lock := k.athleteLock(athleteID)
	lock.Lock()
	defer lock.Unlock()

	athlete, err := k.store.Get(ctx, athleteID)
	if err != nil {
		return "", fmt.Errorf("get athlete %d: %w", athleteID, err)
	}

	if !athlete.Token.Expired(k.nowFn(), k.skew) {
		return athlete.Token.AccessToken, nil
	}

	log.Debugf("token keeper: access token for athlete %d expired, refreshing", athleteID)
	span.SetAttributes(attribute.Bool("token.refreshed", true))

	newToken, err := k.refresher.Refresh(ctx, athlete.Token.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh token for athlete %d: %w", athleteID, err)
	}
	if k.metricsManager != nil {
		k.metricsManager.CounterTokenRefreshes.Inc()
	}

	// strava rotates refresh tokens; keep the old one if none came back
	refreshToken := newToken.RefreshToken
	if refreshToken == "" {
		refreshToken = athlete.Token.RefreshToken
	}
	athlete.Token = TokenRecord{
		AccessToken:  newToken.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    newToken.Expiry.Unix(),
	}

	if err := k.store.Save(ctx, athlete); err != nil {
		return "", fmt.Errorf("save refreshed token for athlete %d: %w", athleteID, err)
	}

	return athlete.Token.AccessToken, nil
}

func (k *Keeper) athleteLock(athleteID int64) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	lock, ok := k.perAthlete[athleteID]
	if !ok {
		lock = &sync.Mutex{}
		k.perAthlete[athleteID] = lock
	}
	return lock
}

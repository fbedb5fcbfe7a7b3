package msa

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arven-dev/botfleet/internal/domain"
)

// Chain stage names, surfaced in ChainStageError.
const (
	StageXBL         = "xbl"
	StageXSTS        = "xsts"
	StageGameService = "game-service"
	StageOwnership   = "ownership"
	StageProfile     = "profile"
)

type xblResponse struct {
	Token         string `json:"Token"`
	DisplayClaims struct {
		XUI []struct {
			UHS string `json:"uhs"`
		} `json:"xui"`
	} `json:"DisplayClaims"`
}

type xstsResponse struct {
	Token string `json:"Token"`
}

type gameLoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type ownershipResponse struct {
	Items []struct {
		Name string `json:"name"`
	} `json:"items"`
}

type profileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CompleteChain converts an identity-provider access token into a full
// game-service credential: XBL, XSTS, game-service login, then ownership
// and profile. Ownership and profile run concurrently; overall success
// still requires both to have resolved alongside a non-empty access token.
func (c *Client) CompleteChain(ctx context.Context, accessToken string) (domain.Credential, error) {
	userHash, xblToken, err := c.xboxLiveToken(ctx, accessToken)
	if err != nil {
		return domain.Credential{}, err
	}

	xstsToken, err := c.xstsToken(ctx, xblToken)
	if err != nil {
		return domain.Credential{}, err
	}

	return c.finishChain(ctx, userHash, xstsToken)
}

// finishChain is the tail shared with the cookie pipeline, which enters
// with a user hash and XSTS token parsed out of the redirect fragment.
func (c *Client) finishChain(ctx context.Context, userHash, xstsToken string) (domain.Credential, error) {
	gameToken, expiresAt, err := c.gameServiceToken(ctx, userHash, xstsToken)
	if err != nil {
		return domain.Credential{}, err
	}

	var (
		wg           sync.WaitGroup
		ownsGame     bool
		ownershipErr error
		profile      profileResponse
		profileErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		ownsGame, ownershipErr = c.checkOwnership(ctx, gameToken)
	}()
	go func() {
		defer wg.Done()
		profile, profileErr = c.fetchProfile(ctx, gameToken)
	}()
	wg.Wait()

	if ownershipErr != nil {
		return domain.Credential{}, ownershipErr
	}
	if profileErr != nil {
		return domain.Credential{}, profileErr
	}

	cred := domain.Credential{
		Kind:        domain.KindDelegated,
		Name:        profile.Name,
		IdentityID:  profile.ID,
		AccessToken: gameToken,
		ExpiresAt:   expiresAt,
		OwnsGame:    ownsGame,
	}
	if !cred.Complete() {
		return cred, domain.ErrIncompleteProfile
	}

	return cred, nil
}

func (c *Client) xboxLiveToken(ctx context.Context, accessToken string) (userHash, token string, err error) {
	payload := map[string]any{
		"Properties": map[string]any{
			"AuthMethod": "RPS",
			"SiteName":   "user.auth.xboxlive.com",
			"RpsTicket":  "d=" + accessToken,
		},
		"RelyingParty": "http://auth.xboxlive.com",
		"TokenType":    "JWT",
	}

	var body xblResponse
	if err := c.postJSON(ctx, StageXBL, c.endpoints.XBL, payload, &body); err != nil {
		return "", "", err
	}
	if body.Token == "" || len(body.DisplayClaims.XUI) == 0 {
		return "", "", &domain.ChainStageError{Stage: StageXBL, Err: fmt.Errorf("response missing token or user hash")}
	}

	return body.DisplayClaims.XUI[0].UHS, body.Token, nil
}

func (c *Client) xstsToken(ctx context.Context, xblToken string) (string, error) {
	payload := map[string]any{
		"Properties": map[string]any{
			"SandboxId":  "RETAIL",
			"UserTokens": []string{xblToken},
		},
		"RelyingParty": "rp://api.minecraftservices.com/",
		"TokenType":    "JWT",
	}

	var body xstsResponse
	if err := c.postJSON(ctx, StageXSTS, c.endpoints.XSTS, payload, &body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", &domain.ChainStageError{Stage: StageXSTS, Err: fmt.Errorf("response missing token")}
	}

	return body.Token, nil
}

func (c *Client) gameServiceToken(ctx context.Context, userHash, xstsToken string) (string, time.Time, error) {
	payload := map[string]string{
		"identityToken": fmt.Sprintf("XBL3.0 x=%s;%s", userHash, xstsToken),
	}

	var body gameLoginResponse
	if err := c.postJSON(ctx, StageGameService, c.endpoints.GameLogin, payload, &body); err != nil {
		return "", time.Time{}, err
	}
	if body.AccessToken == "" {
		return "", time.Time{}, &domain.ChainStageError{Stage: StageGameService, Err: fmt.Errorf("response missing access token")}
	}

	expiresAt := c.clock.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return body.AccessToken, expiresAt, nil
}

func (c *Client) checkOwnership(ctx context.Context, gameToken string) (bool, error) {
	var body ownershipResponse
	if err := c.getJSON(ctx, StageOwnership, c.endpoints.Ownership, gameToken, &body); err != nil {
		return false, err
	}

	hasProduct, hasGame := false, false
	for _, item := range body.Items {
		switch item.Name {
		case "product_minecraft":
			hasProduct = true
		case "game_minecraft":
			hasGame = true
		}
	}

	return hasProduct && hasGame, nil
}

func (c *Client) fetchProfile(ctx context.Context, gameToken string) (profileResponse, error) {
	var body profileResponse
	if err := c.getJSON(ctx, StageProfile, c.endpoints.Profile, gameToken, &body); err != nil {
		return profileResponse{}, err
	}

	return body, nil
}

// Package broker provides broker integration implementations.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// ZerodhaBroker implements Broker for Zerodha Kite Connect.
type ZerodhaBroker struct {
	client        *kiteconnect.Client
	apiSecret     string
	accessToken   string
	tokenPath     string
	exchange      string
	product       string
	authenticated bool
	mu            sync.RWMutex
}

// ZerodhaConfig holds configuration for Zerodha broker.
type ZerodhaConfig struct {
	APIKey      string
	APISecret   string
	AccessToken string
	TokenPath   string
	Exchange    string // NSE when empty
	Product     string // CNC when empty
}

// NewZerodhaBroker creates a new Zerodha broker instance. A configured
// access token wins over a saved session.
func NewZerodhaBroker(cfg ZerodhaConfig) *ZerodhaBroker {
	client := kiteconnect.New(cfg.APIKey)

	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		homeDir, _ := os.UserHomeDir()
		tokenPath = filepath.Join(homeDir, ".config", "trade-journal", "session.json")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "NSE"
	}
	product := cfg.Product
	if product == "" {
		product = "CNC"
	}

	zb := &ZerodhaBroker{
		client:    client,
		apiSecret: cfg.APISecret,
		tokenPath: tokenPath,
		exchange:  exchange,
		product:   product,
	}

	if cfg.AccessToken != "" {
		zb.setToken(cfg.AccessToken)
	} else {
		_ = zb.loadSession()
	}

	return zb
}

// sessionData represents persisted session data.
type sessionData struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (z *ZerodhaBroker) setToken(token string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.accessToken = token
	z.authenticated = true
	z.client.SetAccessToken(token)
}

// LoginURL returns the Kite login URL for the OAuth flow.
func (z *ZerodhaBroker) LoginURL() string {
	return z.client.GetLoginURL()
}

// CompleteLogin exchanges a request token for a session and persists it.
func (z *ZerodhaBroker) CompleteLogin(ctx context.Context, requestToken string) error {
	session, err := z.client.GenerateSession(requestToken, z.apiSecret)
	if err != nil {
		return errors.NewBrokerError(CodeUnauthorized, "failed to generate session", err)
	}
	z.setToken(session.AccessToken)
	return z.saveSession(session.AccessToken)
}

// IsAuthenticated returns whether the broker holds an access token.
func (z *ZerodhaBroker) IsAuthenticated() bool {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.authenticated
}

func (z *ZerodhaBroker) loadSession() error {
	data, err := os.ReadFile(z.tokenPath)
	if err != nil {
		return err
	}

	var session sessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return err
	}

	// Kite tokens expire at 6 AM IST next day
	if time.Now().After(session.ExpiresAt) {
		return fmt.Errorf("session expired")
	}

	z.setToken(session.AccessToken)
	return nil
}

func (z *ZerodhaBroker) saveSession(accessToken string) error {
	if err := os.MkdirAll(filepath.Dir(z.tokenPath), 0700); err != nil {
		return err
	}

	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	now := time.Now().In(loc)
	session := sessionData{
		AccessToken: accessToken,
		ExpiresAt:   time.Date(now.Year(), now.Month(), now.Day()+1, 6, 0, 0, 0, loc),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return os.WriteFile(z.tokenPath, data, 0600)
}

// orderParams maps a journal order onto Kite order parameters.
func (z *ZerodhaBroker) orderParams(order *models.Order) kiteconnect.OrderParams {
	params := kiteconnect.OrderParams{
		Exchange:        z.exchange,
		Tradingsymbol:   order.Symbol,
		TransactionType: "BUY",
		Product:         z.product,
		Quantity:        int(order.Quantity),
		Validity:        "DAY",
		Tag:             string(order.Role),
	}
	if order.Action == models.ActionSell {
		params.TransactionType = "SELL"
	}

	price := order.Price.InexactFloat64()
	switch order.Category {
	case models.OrderMarket:
		params.OrderType = "MARKET"
	case models.OrderLimit:
		params.OrderType = "LIMIT"
		params.Price = price
	case models.OrderStop:
		params.OrderType = "SL-M"
		params.TriggerPrice = price
	}
	return params
}

// SubmitOrder places a regular order.
func (z *ZerodhaBroker) SubmitOrder(ctx context.Context, order *models.Order) (string, error) {
	if !z.IsAuthenticated() {
		return "", errors.NewBrokerError(CodeUnauthorized, "not authenticated", nil)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resp, err := z.client.PlaceOrder(kiteconnect.VarietyRegular, z.orderParams(order))
	if err != nil {
		return "", errors.NewBrokerError(CodeUpstream, "failed to place order", err)
	}
	return resp.OrderID, nil
}

// ModifyOrder reprices an order. Kite keeps the order id across
// modifications, so the returned id is the one Kite reports.
func (z *ZerodhaBroker) ModifyOrder(ctx context.Context, brokerOrderID string, price decimal.Decimal) (string, error) {
	if !z.IsAuthenticated() {
		return "", errors.NewBrokerError(CodeUnauthorized, "not authenticated", nil)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p := price.InexactFloat64()
	resp, err := z.client.ModifyOrder(kiteconnect.VarietyRegular, brokerOrderID, kiteconnect.OrderParams{
		Price:        p,
		TriggerPrice: p,
	})
	if err != nil {
		return "", errors.NewBrokerError(CodeUpstream, "failed to modify order", err)
	}
	if resp.OrderID == "" {
		return brokerOrderID, nil
	}
	return resp.OrderID, nil
}

// CancelOrder cancels a regular order.
func (z *ZerodhaBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	if !z.IsAuthenticated() {
		return errors.NewBrokerError(CodeUnauthorized, "not authenticated", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := z.client.CancelOrder(kiteconnect.VarietyRegular, brokerOrderID, nil); err != nil {
		return errors.NewBrokerError(CodeUpstream, "failed to cancel order", err)
	}
	return nil
}

// Ensure implementations satisfy Broker
var (
	_ Broker = (*ZerodhaBroker)(nil)
	_ Broker = (*PaperBroker)(nil)
)

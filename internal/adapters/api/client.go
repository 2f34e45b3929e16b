package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

const (
	defaultBaseURL     = "https://api.spacetraders.io/v2"
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 5
	defaultBackoffBase = time.Second

	breakerMaxFailures = 10
	breakerCooldown    = 30 * time.Second
)

// APIError is a structured error returned by the game server. Code carries
// the server's numeric error code so callers can branch on specific failures
// (e.g. 4511: contract already open).
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("api error %d (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// APICode satisfies common.APICoded so application handlers can branch on
// server error codes without depending on this package.
func (e *APIError) APICode() int { return e.Code }

// AsAPIError unwraps err into an *APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Client talks to the game server with rate limiting and retries.
// Rate limit: 2 requests per second with burst of 2.
// Retry: max 5 attempts with 1s exponential backoff plus jitter.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	maxRetries  int
	backoffBase time.Duration
	clock       shared.Clock
	breaker     *CircuitBreaker
}

var _ common.APIClient = (*Client)(nil)

// NewClient creates a client with production defaults.
func NewClient() *Client {
	return NewClientWithConfig(defaultBaseURL, defaultMaxRetries, defaultBackoffBase, nil)
}

// NewClientWithConfig creates a client with custom settings.
// A nil clock means wall-clock time.
func NewClientWithConfig(baseURL string, maxRetries int, backoffBase time.Duration, clock shared.Clock) *Client {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		rateLimiter: rate.NewLimiter(rate.Limit(2), 2),
		baseURL:     baseURL,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		clock:       clock,
		breaker:     NewCircuitBreaker(breakerMaxFailures, breakerCooldown, clock),
	}
}

type shipJSON struct {
	Symbol       string `json:"symbol"`
	Registration struct {
		Role string `json:"role"`
	} `json:"registration"`
	Nav struct {
		SystemSymbol   string `json:"systemSymbol"`
		WaypointSymbol string `json:"waypointSymbol"`
		Status         string `json:"status"`
		FlightMode     string `json:"flightMode"`
		Route          *struct {
			Arrival string `json:"arrival"`
		} `json:"route,omitempty"`
	} `json:"nav"`
	Fuel struct {
		Current  int `json:"current"`
		Capacity int `json:"capacity"`
	} `json:"fuel"`
	Engine struct {
		Speed int `json:"speed"`
	} `json:"engine"`
	Frame struct {
		Symbol string `json:"symbol"`
	} `json:"frame"`
	Cooldown struct {
		Expiration string `json:"expiration"`
	} `json:"cooldown"`
}

func (s *shipJSON) toShipData() *common.ShipData {
	data := &common.ShipData{
		Symbol:       s.Symbol,
		Location:     s.Nav.WaypointSymbol,
		NavStatus:    s.Nav.Status,
		FlightMode:   s.Nav.FlightMode,
		FuelCurrent:  s.Fuel.Current,
		FuelCapacity: s.Fuel.Capacity,
		EngineSpeed:  s.Engine.Speed,
		FrameSymbol:  s.Frame.Symbol,
		Role:         s.Registration.Role,
	}
	if s.Nav.Route != nil && s.Nav.Status == "IN_TRANSIT" {
		if arrival, err := time.Parse(time.RFC3339, s.Nav.Route.Arrival); err == nil {
			data.ArrivalTime = &arrival
		}
	}
	if s.Cooldown.Expiration != "" {
		if expiry, err := time.Parse(time.RFC3339, s.Cooldown.Expiration); err == nil {
			data.CooldownExpiry = &expiry
		}
	}
	return data
}

// GetShip retrieves one ship's current state.
func (c *Client) GetShip(ctx context.Context, symbol, token string) (*common.ShipData, error) {
	var response struct {
		Data shipJSON `json:"data"`
	}
	if err := c.request(ctx, "GET", fmt.Sprintf("/my/ships/%s", symbol), token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get ship: %w", err)
	}
	return response.Data.toShipData(), nil
}

// ListShips retrieves every ship the agent owns, following pagination.
func (c *Client) ListShips(ctx context.Context, token string) ([]*common.ShipData, error) {
	ships := []*common.ShipData{}
	page := 1
	limit := 20

	for {
		var response struct {
			Data []shipJSON `json:"data"`
			Meta struct {
				Total int `json:"total"`
			} `json:"meta"`
		}
		path := fmt.Sprintf("/my/ships?page=%d&limit=%d", page, limit)
		if err := c.request(ctx, "GET", path, token, nil, &response); err != nil {
			return nil, fmt.Errorf("failed to list ships: %w", err)
		}
		for i := range response.Data {
			ships = append(ships, response.Data[i].toShipData())
		}
		if len(response.Data) < limit || len(ships) >= response.Meta.Total {
			break
		}
		page++
	}
	return ships, nil
}

// NavigateShip orders a ship toward destination.
func (c *Client) NavigateShip(ctx context.Context, symbol, destination, token string) (*common.NavigationResult, error) {
	body := map[string]string{"waypointSymbol": destination}

	var response struct {
		Data struct {
			Nav struct {
				Route struct {
					Arrival       string `json:"arrival"`
					DepartureTime string `json:"departureTime"`
				} `json:"route"`
			} `json:"nav"`
			Fuel struct {
				Consumed struct {
					Amount int `json:"amount"`
				} `json:"consumed"`
			} `json:"fuel"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/my/ships/%s/navigate", symbol)
	if err := c.request(ctx, "POST", path, token, body, &response); err != nil {
		return nil, fmt.Errorf("failed to navigate ship: %w", err)
	}

	result := &common.NavigationResult{
		Destination:    destination,
		ArrivalTimeStr: response.Data.Nav.Route.Arrival,
		FuelConsumed:   response.Data.Fuel.Consumed.Amount,
	}
	if arrival, err := time.Parse(time.RFC3339, response.Data.Nav.Route.Arrival); err == nil {
		seconds := int(time.Until(arrival).Seconds())
		if seconds < 0 {
			seconds = 0
		}
		result.ArrivalTime = seconds
	}
	return result, nil
}

// OrbitShip moves a docked ship into orbit.
func (c *Client) OrbitShip(ctx context.Context, symbol, token string) error {
	path := fmt.Sprintf("/my/ships/%s/orbit", symbol)
	if err := c.request(ctx, "POST", path, token, nil, nil); err != nil {
		return fmt.Errorf("failed to orbit ship: %w", err)
	}
	return nil
}

// DockShip docks an orbiting ship.
func (c *Client) DockShip(ctx context.Context, symbol, token string) error {
	path := fmt.Sprintf("/my/ships/%s/dock", symbol)
	if err := c.request(ctx, "POST", path, token, nil, nil); err != nil {
		return fmt.Errorf("failed to dock ship: %w", err)
	}
	return nil
}

// RefuelShip buys fuel at the current waypoint. Nil units fills the tank.
func (c *Client) RefuelShip(ctx context.Context, symbol, token string, units *int) (*common.RefuelResult, error) {
	var body interface{}
	if units != nil {
		body = map[string]int{"units": *units}
	}

	var response struct {
		Data struct {
			Transaction struct {
				Units      int `json:"units"`
				TotalPrice int `json:"totalPrice"`
			} `json:"transaction"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/my/ships/%s/refuel", symbol)
	if err := c.request(ctx, "POST", path, token, body, &response); err != nil {
		return nil, fmt.Errorf("failed to refuel ship: %w", err)
	}
	return &common.RefuelResult{
		FuelAdded:   response.Data.Transaction.Units,
		CreditsCost: response.Data.Transaction.TotalPrice,
	}, nil
}

// SetFlightMode changes the ship's flight mode.
func (c *Client) SetFlightMode(ctx context.Context, symbol, flightMode, token string) error {
	body := map[string]string{"flightMode": flightMode}
	path := fmt.Sprintf("/my/ships/%s/nav", symbol)
	if err := c.request(ctx, "PATCH", path, token, body, nil); err != nil {
		return fmt.Errorf("failed to set flight mode: %w", err)
	}
	return nil
}

// PurchaseShip buys a ship of the given type at a shipyard waypoint.
func (c *Client) PurchaseShip(ctx context.Context, shipType, waypointSymbol, token string) (*common.PurchaseResult, error) {
	body := map[string]string{
		"shipType":       shipType,
		"waypointSymbol": waypointSymbol,
	}

	var response struct {
		Data struct {
			Ship struct {
				Symbol string `json:"symbol"`
			} `json:"ship"`
			Transaction struct {
				Price int `json:"price"`
			} `json:"transaction"`
		} `json:"data"`
	}
	if err := c.request(ctx, "POST", "/my/ships", token, body, &response); err != nil {
		return nil, fmt.Errorf("failed to purchase ship: %w", err)
	}
	return &common.PurchaseResult{
		ShipSymbol:  response.Data.Ship.Symbol,
		CreditsCost: response.Data.Transaction.Price,
	}, nil
}

// GetAgent retrieves the agent owning the token.
func (c *Client) GetAgent(ctx context.Context, token string) (*common.AgentData, error) {
	var response struct {
		Data struct {
			AccountID       string `json:"accountId"`
			Symbol          string `json:"symbol"`
			Headquarters    string `json:"headquarters"`
			Credits         int    `json:"credits"`
			StartingFaction string `json:"startingFaction"`
		} `json:"data"`
	}
	if err := c.request(ctx, "GET", "/my/agent", token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &common.AgentData{
		AccountID:       response.Data.AccountID,
		Symbol:          response.Data.Symbol,
		Headquarters:    response.Data.Headquarters,
		Credits:         response.Data.Credits,
		StartingFaction: response.Data.StartingFaction,
	}, nil
}

// GetMarket retrieves the market at a waypoint. Trade goods with prices are
// only present while one of the agent's ships is at the waypoint.
func (c *Client) GetMarket(ctx context.Context, systemSymbol, waypointSymbol, token string) (*common.MarketData, error) {
	var response struct {
		Data struct {
			Symbol     string `json:"symbol"`
			TradeGoods []struct {
				Symbol        string `json:"symbol"`
				Supply        string `json:"supply"`
				Activity      string `json:"activity"`
				PurchasePrice int    `json:"purchasePrice"`
				SellPrice     int    `json:"sellPrice"`
				TradeVolume   int    `json:"tradeVolume"`
			} `json:"tradeGoods"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/systems/%s/waypoints/%s/market", systemSymbol, waypointSymbol)
	if err := c.request(ctx, "GET", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}

	goods := make([]common.TradeGoodData, len(response.Data.TradeGoods))
	for i, g := range response.Data.TradeGoods {
		goods[i] = common.TradeGoodData{
			Symbol:        g.Symbol,
			SupplyLevel:   g.Supply,
			ActivityLevel: g.Activity,
			PurchasePrice: g.PurchasePrice,
			SellPrice:     g.SellPrice,
			TradeVolume:   g.TradeVolume,
		}
	}
	return &common.MarketData{
		WaypointSymbol: response.Data.Symbol,
		TradeGoods:     goods,
	}, nil
}

func (c *Client) GetShipyard(ctx context.Context, systemSymbol, waypointSymbol, token string) (*common.ShipyardData, error) {
	var response struct {
		Data struct {
			Symbol string `json:"symbol"`
			Ships  []struct {
				Type          string `json:"type"`
				Name          string `json:"name"`
				PurchasePrice int    `json:"purchasePrice"`
			} `json:"ships"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/systems/%s/waypoints/%s/shipyard", systemSymbol, waypointSymbol)
	if err := c.request(ctx, "GET", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get shipyard: %w", err)
	}

	listings := make([]common.ShipListing, len(response.Data.Ships))
	for i, s := range response.Data.Ships {
		listings[i] = common.ShipListing{
			Type:          s.Type,
			Name:          s.Name,
			PurchasePrice: s.PurchasePrice,
		}
	}
	return &common.ShipyardData{
		WaypointSymbol: response.Data.Symbol,
		Listings:       listings,
	}, nil
}

// ListWaypoints retrieves one page of a system's waypoints.
func (c *Client) ListWaypoints(ctx context.Context, systemSymbol, token string, page, limit int) (*common.WaypointsListResponse, error) {
	var response struct {
		Data []struct {
			Symbol   string                   `json:"symbol"`
			Type     string                   `json:"type"`
			X        float64                  `json:"x"`
			Y        float64                  `json:"y"`
			Traits   []map[string]interface{} `json:"traits"`
			Orbitals []map[string]string      `json:"orbitals"`
		} `json:"data"`
		Meta struct {
			Total int `json:"total"`
			Page  int `json:"page"`
			Limit int `json:"limit"`
		} `json:"meta"`
	}
	path := fmt.Sprintf("/systems/%s/waypoints?page=%d&limit=%d", systemSymbol, page, limit)
	if err := c.request(ctx, "GET", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to list waypoints: %w", err)
	}

	waypoints := make([]common.WaypointAPIData, len(response.Data))
	for i, wp := range response.Data {
		waypoints[i] = common.WaypointAPIData{
			Symbol:   wp.Symbol,
			Type:     wp.Type,
			X:        wp.X,
			Y:        wp.Y,
			Traits:   wp.Traits,
			Orbitals: wp.Orbitals,
		}
	}
	return &common.WaypointsListResponse{
		Data: waypoints,
		Meta: common.PaginationMeta{
			Total: response.Meta.Total,
			Page:  response.Meta.Page,
			Limit: response.Meta.Limit,
		},
	}, nil
}

type contractJSON struct {
	ID            string `json:"id"`
	FactionSymbol string `json:"factionSymbol"`
	Type          string `json:"type"`
	Accepted      bool   `json:"accepted"`
	Fulfilled     bool   `json:"fulfilled"`
	Terms         struct {
		Deadline string `json:"deadline"`
		Payment  struct {
			OnAccepted  int `json:"onAccepted"`
			OnFulfilled int `json:"onFulfilled"`
		} `json:"payment"`
		Deliver []struct {
			TradeSymbol       string `json:"tradeSymbol"`
			DestinationSymbol string `json:"destinationSymbol"`
			UnitsRequired     int    `json:"unitsRequired"`
			UnitsFulfilled    int    `json:"unitsFulfilled"`
		} `json:"deliver"`
	} `json:"terms"`
	DeadlineToAccept string `json:"deadlineToAccept"`
}

func (c *contractJSON) toContractData() *common.ContractData {
	data := &common.ContractData{
		ID:               c.ID,
		FactionSymbol:    c.FactionSymbol,
		Type:             c.Type,
		Accepted:         c.Accepted,
		Fulfilled:        c.Fulfilled,
		PaymentOnAccept:  c.Terms.Payment.OnAccepted,
		PaymentOnFulfill: c.Terms.Payment.OnFulfilled,
	}
	if t, err := time.Parse(time.RFC3339, c.DeadlineToAccept); err == nil {
		data.DeadlineToAccept = &t
	}
	if t, err := time.Parse(time.RFC3339, c.Terms.Deadline); err == nil {
		data.Deadline = &t
	}
	for _, d := range c.Terms.Deliver {
		data.Terms = append(data.Terms, common.ContractDeliverable{
			TradeSymbol:       d.TradeSymbol,
			DestinationSymbol: d.DestinationSymbol,
			UnitsRequired:     d.UnitsRequired,
			UnitsFulfilled:    d.UnitsFulfilled,
		})
	}
	return data
}

// ListContracts retrieves the agent's contracts.
func (c *Client) ListContracts(ctx context.Context, token string) ([]*common.ContractData, error) {
	var response struct {
		Data []contractJSON `json:"data"`
	}
	if err := c.request(ctx, "GET", "/my/contracts", token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	contracts := make([]*common.ContractData, len(response.Data))
	for i := range response.Data {
		contracts[i] = response.Data[i].toContractData()
	}
	return contracts, nil
}

// NegotiateContract negotiates a new contract with a docked ship. The server
// refuses with code 4511 when an open contract already exists.
func (c *Client) NegotiateContract(ctx context.Context, shipSymbol, token string) (*common.ContractData, error) {
	var response struct {
		Data struct {
			Contract contractJSON `json:"contract"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/my/ships/%s/negotiate/contract", shipSymbol)
	if err := c.request(ctx, "POST", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to negotiate contract: %w", err)
	}
	return response.Data.Contract.toContractData(), nil
}

// AcceptContract accepts a negotiated contract.
func (c *Client) AcceptContract(ctx context.Context, contractID, token string) (*common.ContractData, error) {
	var response struct {
		Data struct {
			Contract contractJSON `json:"contract"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/my/contracts/%s/accept", contractID)
	if err := c.request(ctx, "POST", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to accept contract: %w", err)
	}
	return response.Data.Contract.toContractData(), nil
}

// DeliverContract delivers cargo units against a contract term.
func (c *Client) DeliverContract(ctx context.Context, contractID, shipSymbol, tradeSymbol string, units int, token string) (*common.ContractData, error) {
	body := map[string]interface{}{
		"shipSymbol":  shipSymbol,
		"tradeSymbol": tradeSymbol,
		"units":       units,
	}
	var response struct {
		Data struct {
			Contract contractJSON `json:"contract"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/my/contracts/%s/deliver", contractID)
	if err := c.request(ctx, "POST", path, token, body, &response); err != nil {
		return nil, fmt.Errorf("failed to deliver contract cargo: %w", err)
	}
	return response.Data.Contract.toContractData(), nil
}

// FulfillContract fulfills a contract whose terms are all delivered.
func (c *Client) FulfillContract(ctx context.Context, contractID, token string) (*common.ContractData, error) {
	var response struct {
		Data struct {
			Contract contractJSON `json:"contract"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/my/contracts/%s/fulfill", contractID)
	if err := c.request(ctx, "POST", path, token, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fulfill contract: %w", err)
	}
	return response.Data.Contract.toContractData(), nil
}

// PurchaseCargo buys goods into a docked ship's cargo hold.
func (c *Client) PurchaseCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*common.CargoTransaction, error) {
	body := map[string]interface{}{
		"symbol": tradeSymbol,
		"units":  units,
	}
	var response struct {
		Data struct {
			Transaction struct {
				ShipSymbol   string `json:"shipSymbol"`
				TradeSymbol  string `json:"tradeSymbol"`
				Units        int    `json:"units"`
				PricePerUnit int    `json:"pricePerUnit"`
				TotalPrice   int    `json:"totalPrice"`
			} `json:"transaction"`
			Agent struct {
				Credits int `json:"credits"`
			} `json:"agent"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/my/ships/%s/purchase", shipSymbol)
	if err := c.request(ctx, "POST", path, token, body, &response); err != nil {
		return nil, fmt.Errorf("failed to purchase cargo: %w", err)
	}
	t := response.Data.Transaction
	return &common.CargoTransaction{
		ShipSymbol:   t.ShipSymbol,
		TradeSymbol:  t.TradeSymbol,
		Units:        t.Units,
		PricePerUnit: t.PricePerUnit,
		TotalPrice:   t.TotalPrice,
		AgentCredits: response.Data.Agent.Credits,
	}, nil
}

// retryableError marks a failure worth another attempt.
type retryableError struct {
	message string
}

func (e *retryableError) Error() string { return e.message }

// request performs one API call with rate limiting, retrying transient
// failures with exponential backoff plus jitter. Client errors other than
// 429 surface immediately as *APIError. A run of server failures trips the
// circuit breaker and later calls fail fast with ErrCircuitOpen.
func (c *Client) request(ctx context.Context, method, path, token string, body interface{}, result interface{}) error {
	return c.breaker.Call(func() error {
		return c.doRequest(ctx, method, path, token, body, result)
	})
}

func (c *Client) doRequest(ctx context.Context, method, path, token string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		var reqBody io.Reader
		if body != nil {
			jsonData, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			reqBody = bytes.NewBuffer(jsonData)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &retryableError{message: fmt.Sprintf("network error: %v", err)}
			if attempt >= c.maxRetries {
				break
			}
			if ctx.Err() != nil {
				return fmt.Errorf("context cancelled: %w", ctx.Err())
			}
			c.clock.Sleep(addJitter(c.backoffBase * time.Duration(1<<attempt)))
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("failed to read response: %w", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			var retryAfter time.Duration
			if header := resp.Header.Get("Retry-After"); header != "" {
				if seconds, err := strconv.Atoi(header); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			}
			lastErr = &retryableError{message: "rate limited (429)"}
			if attempt >= c.maxRetries {
				break
			}
			if ctx.Err() != nil {
				return fmt.Errorf("context cancelled: %w", ctx.Err())
			}
			delay := addJitter(c.backoffBase * time.Duration(1<<attempt))
			if retryAfter > 0 {
				delay = retryAfter
			}
			c.clock.Sleep(delay)
			continue

		case resp.StatusCode >= 500:
			lastErr = &retryableError{message: fmt.Sprintf("server error (%d)", resp.StatusCode)}
			if attempt >= c.maxRetries {
				break
			}
			if ctx.Err() != nil {
				return fmt.Errorf("context cancelled: %w", ctx.Err())
			}
			c.clock.Sleep(addJitter(c.backoffBase * time.Duration(1<<attempt)))
			continue

		case resp.StatusCode >= 400:
			return parseAPIError(resp.StatusCode, respBody)

		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
		}
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return fmt.Errorf("max retries exceeded")
}

func parseAPIError(statusCode int, body []byte) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{
			StatusCode: statusCode,
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
		}
	}
	return &APIError{StatusCode: statusCode, Message: string(body)}
}

// addJitter adds up to 25% random jitter so synchronized clients spread out.
func addJitter(d time.Duration) time.Duration {
	jitter := time.Duration(rand.Int63n(int64(d) / 4))
	return d + jitter
}

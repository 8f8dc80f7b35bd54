package workload

import (
	"context"
	"errors"
	"fmt"

	"github.com/acdtunes/fleetd/internal/domain/contract"
	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/internal/infrastructure/ports"
)

// negotiateErrorAlreadyExists is the SpaceTraders 4511 error code: the ship
// already has a contract pending negotiation.
const negotiateErrorAlreadyExists = 4511

// NegotiateContract negotiates a new contract for ship, resuming an
// already-negotiated contract on a 4511 error rather than failing.
func (h *Handlers) NegotiateContract(ctx context.Context, playerID shared.PlayerID, shipSymbol string) (*ports.ContractData, error) {
	tok, err := h.token(ctx, playerID)
	if err != nil {
		return nil, err
	}

	result, err := h.APIClient.NegotiateContract(ctx, shipSymbol, tok)
	if err != nil {
		return nil, fmt.Errorf("workload: negotiate contract: %w", err)
	}
	if result.Contract != nil {
		h.persistContract(ctx, playerID, result.Contract)
		return result.Contract, nil
	}
	if result.ErrorCode == negotiateErrorAlreadyExists && result.ExistingContractID != "" {
		existing, err := h.APIClient.GetContract(ctx, result.ExistingContractID, tok)
		if err != nil {
			return nil, fmt.Errorf("workload: negotiate contract: fetching existing contract %s: %w", result.ExistingContractID, err)
		}
		h.persistContract(ctx, playerID, existing)
		return existing, nil
	}
	return nil, errors.New("workload: negotiate contract: no contract and no resumable existing contract")
}

func (h *Handlers) persistContract(ctx context.Context, playerID shared.PlayerID, data *ports.ContractData) {
	terms := contract.Terms{
		Payment: contract.Payment{
			OnAccepted:  data.Terms.Payment.OnAccepted,
			OnFulfilled: data.Terms.Payment.OnFulfilled,
		},
		DeadlineToAccept: data.Terms.DeadlineToAccept,
		Deadline:         data.Terms.Deadline,
	}
	for _, d := range data.Terms.Deliveries {
		terms.Deliveries = append(terms.Deliveries, contract.Delivery{
			TradeSymbol:       d.TradeSymbol,
			DestinationSymbol: d.DestinationSymbol,
			UnitsRequired:     d.UnitsRequired,
			UnitsFulfilled:    d.UnitsFulfilled,
		})
	}
	entity, err := contract.NewContract(data.ID, playerID, data.FactionSymbol, data.Type, terms, h.Clock)
	if err != nil {
		return
	}
	_ = h.ContractRepo.Add(ctx, entity)
}

// AcceptContract accepts the named contract, always, per spec.md's
// always-accept rule (profitability is evaluated and logged by BatchContract
// but never blocks acceptance).
func (h *Handlers) AcceptContract(ctx context.Context, playerID shared.PlayerID, contractID string) (*ports.ContractData, error) {
	tok, err := h.token(ctx, playerID)
	if err != nil {
		return nil, err
	}
	data, err := h.APIClient.AcceptContract(ctx, contractID, tok)
	if err != nil {
		return nil, fmt.Errorf("workload: accept contract: %w", err)
	}
	h.persistContract(ctx, playerID, data)
	return data, nil
}

// DeliverContract delivers units of tradeSymbol toward contractID's
// deliveries using shipSymbol's current cargo.
func (h *Handlers) DeliverContract(ctx context.Context, playerID shared.PlayerID, contractID, shipSymbol, tradeSymbol string, units int) (*ports.ContractData, error) {
	tok, err := h.token(ctx, playerID)
	if err != nil {
		return nil, err
	}
	data, err := h.APIClient.DeliverContract(ctx, contractID, shipSymbol, tradeSymbol, units, tok)
	if err != nil {
		return nil, fmt.Errorf("workload: deliver contract: %w", err)
	}
	return data, nil
}

// FulfillContract closes out a fully-delivered contract.
func (h *Handlers) FulfillContract(ctx context.Context, playerID shared.PlayerID, contractID string) (*ports.ContractData, error) {
	tok, err := h.token(ctx, playerID)
	if err != nil {
		return nil, err
	}
	data, err := h.APIClient.FulfillContract(ctx, contractID, tok)
	if err != nil {
		return nil, fmt.Errorf("workload: fulfill contract: %w", err)
	}
	return data, nil
}

// BatchContractResult summarizes a BatchContract run: every failure appends
// to Errors and the run continues, per spec.md's "the command continues".
type BatchContractResult struct {
	ContractsCompleted int
	Errors             []string
}

// BatchContract runs N contract iterations on ship: resume an active
// contract if one exists, otherwise negotiate fresh; always accept; for each
// delivery, reconcile cargo (jettison unrelated goods, purchase missing
// goods at the cheapest reachable market, split purchases by trade_volume),
// navigate+deliver in cargo-capacity-sized trips, then fulfill.
func (h *Handlers) BatchContract(ctx context.Context, playerID shared.PlayerID, shipSymbol string, iterations int) *BatchContractResult {
	result := &BatchContractResult{}

	for i := 0; i < iterations; i++ {
		if err := h.runOneContract(ctx, playerID, shipSymbol); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.ContractsCompleted++
	}

	return result
}

func (h *Handlers) runOneContract(ctx context.Context, playerID shared.PlayerID, shipSymbol string) error {
	active, err := h.ContractRepo.FindActiveContracts(ctx, playerID.Value())
	if err != nil {
		return fmt.Errorf("finding active contracts: %w", err)
	}

	var data *ports.ContractData
	if len(active) > 0 && !active[0].Fulfilled() {
		c := active[0]
		terms := c.Terms()
		data = &ports.ContractData{
			ID:            c.ContractID(),
			FactionSymbol: c.FactionSymbol(),
			Type:          c.Type(),
			Accepted:      c.Accepted(),
			Fulfilled:     c.Fulfilled(),
			Terms: ports.ContractTermsData{
				DeadlineToAccept: terms.DeadlineToAccept,
				Deadline:         terms.Deadline,
				Payment:          ports.PaymentData{OnAccepted: terms.Payment.OnAccepted, OnFulfilled: terms.Payment.OnFulfilled},
			},
		}
		for _, d := range terms.Deliveries {
			data.Terms.Deliveries = append(data.Terms.Deliveries, ports.DeliveryData{
				TradeSymbol: d.TradeSymbol, DestinationSymbol: d.DestinationSymbol,
				UnitsRequired: d.UnitsRequired, UnitsFulfilled: d.UnitsFulfilled,
			})
		}
	} else {
		negotiated, err := h.NegotiateContract(ctx, playerID, shipSymbol)
		if err != nil {
			return fmt.Errorf("negotiating contract: %w", err)
		}
		data = negotiated
	}

	h.logProfitability(ctx, playerID, shipSymbol, data)

	if !data.Accepted {
		accepted, err := h.AcceptContract(ctx, playerID, data.ID)
		if err != nil {
			return fmt.Errorf("accepting contract %s: %w", data.ID, err)
		}
		data = accepted
	}

	for _, delivery := range data.Terms.Deliveries {
		remaining := delivery.UnitsRequired - delivery.UnitsFulfilled
		if remaining <= 0 {
			continue
		}
		if err := h.deliverInTrips(ctx, playerID, shipSymbol, data.ID, delivery.TradeSymbol, delivery.DestinationSymbol, remaining); err != nil {
			return fmt.Errorf("delivering %s for contract %s: %w", delivery.TradeSymbol, data.ID, err)
		}
	}

	if _, err := h.FulfillContract(ctx, playerID, data.ID); err != nil {
		return fmt.Errorf("fulfilling contract %s: %w", data.ID, err)
	}
	return nil
}

// deliverInTrips reconciles cargo and runs delivery trips sized by cargo
// capacity until units of tradeSymbol have been delivered to destination.
func (h *Handlers) deliverInTrips(ctx context.Context, playerID shared.PlayerID, shipSymbol, contractID, tradeSymbol, destination string, units int) error {
	ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
	if err != nil {
		return fmt.Errorf("finding ship: %w", err)
	}

	for _, item := range ship.Cargo().Inventory {
		if item.Symbol != tradeSymbol && item.Units > 0 {
			_ = h.JettisonCargo(ctx, playerID, shipSymbol, item.Symbol, item.Units)
		}
	}

	remaining := units
	for remaining > 0 {
		ship, err = h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
		if err != nil {
			return fmt.Errorf("finding ship: %w", err)
		}

		tripUnits := remaining
		if capacity := ship.AvailableCargoSpace(); tripUnits > capacity {
			tripUnits = capacity
		}
		if tripUnits <= 0 {
			return fmt.Errorf("ship %s has no cargo space to carry %s", shipSymbol, tradeSymbol)
		}

		if err := h.purchaseForDelivery(ctx, playerID, shipSymbol, tradeSymbol, tripUnits); err != nil {
			return fmt.Errorf("purchasing %s: %w", tradeSymbol, err)
		}

		if _, err := h.Navigate(ctx, playerID, shipSymbol, destination); err != nil {
			return fmt.Errorf("navigating to %s: %w", destination, err)
		}
		if err := h.Dock(ctx, playerID, shipSymbol); err != nil {
			return fmt.Errorf("docking at %s: %w", destination, err)
		}

		tok, err := h.token(ctx, playerID)
		if err != nil {
			return err
		}
		if _, err := h.APIClient.DeliverContract(ctx, contractID, shipSymbol, tradeSymbol, tripUnits, tok); err != nil {
			return fmt.Errorf("delivering: %w", err)
		}

		remaining -= tripUnits
	}
	return nil
}

var profitabilityService = contract.NewContractProfitabilityService()

// logProfitability evaluates and logs the contract's profitability. Per
// spec.md §4.I, contracts are always accepted regardless of this evaluation
// (small losses are tolerated to avoid ship idle time); the evaluation exists
// purely to annotate the operator-visible decision.
func (h *Handlers) logProfitability(ctx context.Context, playerID shared.PlayerID, shipSymbol string, data *ports.ContractData) {
	terms := contract.Terms{
		Payment: contract.Payment{OnAccepted: data.Terms.Payment.OnAccepted, OnFulfilled: data.Terms.Payment.OnFulfilled},
	}
	for _, d := range data.Terms.Deliveries {
		terms.Deliveries = append(terms.Deliveries, contract.Delivery{
			TradeSymbol: d.TradeSymbol, DestinationSymbol: d.DestinationSymbol,
			UnitsRequired: d.UnitsRequired, UnitsFulfilled: d.UnitsFulfilled,
		})
	}
	entity, err := contract.NewContract(data.ID, playerID, data.FactionSymbol, data.Type, terms, h.Clock)
	if err != nil {
		return
	}

	ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
	if err != nil {
		return
	}
	systemSymbol := shared.ExtractSystemSymbol(ship.CurrentLocation().Symbol)

	marketPrices := make(map[string]int, len(data.Terms.Deliveries))
	for _, d := range data.Terms.Deliveries {
		cheapest, err := h.MarketRepo.FindCheapestMarketSelling(ctx, d.TradeSymbol, systemSymbol, playerID.Value())
		if err != nil {
			return
		}
		marketPrices[d.TradeSymbol] = cheapest.SellPrice
	}

	evalCtx := contract.ProfitabilityContext{
		MarketPrices:  marketPrices,
		CargoCapacity: ship.CargoCapacity(),
		// Fuel cost per round trip has no committed route yet at negotiation
		// time; a full-tank burn is the conservative upper bound.
		FuelCostPerTrip: ship.FuelCapacity(),
	}
	evaluation, err := profitabilityService.EvaluateProfitability(entity, evalCtx)
	if err != nil {
		return
	}

	h.Logger.Info().
		Str("contract_id", data.ID).
		Bool("profitable", evaluation.IsProfitable).
		Int("net_profit", evaluation.NetProfit).
		Str("reason", evaluation.Reason).
		Msg("contract profitability evaluated")
}

// purchaseForDelivery buys units of tradeSymbol at the cheapest reachable
// market, splitting the purchase across multiple calls if a single market's
// trade_volume can't satisfy the full amount in one transaction.
func (h *Handlers) purchaseForDelivery(ctx context.Context, playerID shared.PlayerID, shipSymbol, tradeSymbol string, units int) error {
	ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
	if err != nil {
		return err
	}
	systemSymbol := shared.ExtractSystemSymbol(ship.CurrentLocation().Symbol)

	cheapest, err := h.MarketRepo.FindCheapestMarketSelling(ctx, tradeSymbol, systemSymbol, playerID.Value())
	if err != nil {
		return fmt.Errorf("finding cheapest market for %s: %w", tradeSymbol, err)
	}

	if ship.CurrentLocation().Symbol != cheapest.WaypointSymbol {
		if _, err := h.Navigate(ctx, playerID, shipSymbol, cheapest.WaypointSymbol); err != nil {
			return err
		}
	}
	if err := h.Dock(ctx, playerID, shipSymbol); err != nil {
		return err
	}

	tradeVolume := 0
	if market, err := h.MarketRepo.GetMarketData(ctx, cheapest.WaypointSymbol, playerID.Value()); err == nil {
		if good := market.FindGood(tradeSymbol); good != nil {
			tradeVolume = good.TradeVolume()
		}
	}

	remaining := units
	for remaining > 0 {
		batch := remaining
		if tradeVolume > 0 && batch > tradeVolume {
			batch = tradeVolume
		}
		if _, err := h.PurchaseCargo(ctx, playerID, shipSymbol, tradeSymbol, batch); err != nil {
			return err
		}
		remaining -= batch
	}
	return nil
}

package models

import (
	"database/sql/driver"
	"fmt"
)

// MovementType classifies stock ledger entries. The codes are the ones printed
// on folios, so they stay in the shop's document vocabulary.
type MovementType string

const (
	MovementTypeInbound     MovementType = "ING" // goods received
	MovementTypeOutbound    MovementType = "EGR" // goods taken out (repairs, shrinkage)
	MovementTypeSale        MovementType = "VTA" // sold over the counter
	MovementTypeAdjustment  MovementType = "AJU" // signed manual correction
	MovementTypeTransferOut MovementType = "TRF_OUT"
	MovementTypeTransferIn  MovementType = "TRF_IN"
)

func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeInbound, MovementTypeOutbound, MovementTypeSale,
		MovementTypeAdjustment, MovementTypeTransferOut, MovementTypeTransferIn:
		return true
	}
	return false
}

// FolioPrefix maps a movement type to its document prefix.
func (t MovementType) FolioPrefix() string {
	if t.IsValid() {
		return string(t)
	}
	return "MOV"
}

func (t *MovementType) Scan(value interface{}) error { return scanEnum((*string)(t), value) }
func (t MovementType) Value() (driver.Value, error)  { return string(t), nil }

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "EFECTIVO"
	PaymentMethodCard     PaymentMethod = "TARJETA"
	PaymentMethodTransfer PaymentMethod = "TRANSFERENCIA"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer:
		return true
	}
	return false
}

func (m *PaymentMethod) Scan(value interface{}) error { return scanEnum((*string)(m), value) }
func (m PaymentMethod) Value() (driver.Value, error)  { return string(m), nil }

type SaleStatus string

const (
	SaleStatusPending SaleStatus = "PENDIENTE"
	SaleStatusPaid    SaleStatus = "PAGADO"
)

func (s *SaleStatus) Scan(value interface{}) error { return scanEnum((*string)(s), value) }
func (s SaleStatus) Value() (driver.Value, error)  { return string(s), nil }

type TicketState string

const (
	TicketStateReceived     TicketState = "RECIBIDO"
	TicketStateDiagnosing   TicketState = "DIAGNOSTICO"
	TicketStateAwaitingPart TicketState = "ESPERANDO_PIEZA"
	TicketStateInRepair     TicketState = "EN_REPARACION"
	TicketStateRepaired     TicketState = "REPARADO"
	TicketStateDelivered    TicketState = "ENTREGADO"
	TicketStateCancelled    TicketState = "CANCELADO"
)

func (s TicketState) IsValid() bool {
	switch s {
	case TicketStateReceived, TicketStateDiagnosing, TicketStateAwaitingPart,
		TicketStateInRepair, TicketStateRepaired, TicketStateDelivered, TicketStateCancelled:
		return true
	}
	return false
}

func (s *TicketState) Scan(value interface{}) error { return scanEnum((*string)(s), value) }
func (s TicketState) Value() (driver.Value, error)  { return string(s), nil }

type TicketPartState string

const (
	TicketPartStateReserved TicketPartState = "RESERVADA"
	TicketPartStateConsumed TicketPartState = "CONSUMIDA"
	TicketPartStateReleased TicketPartState = "LIBERADA"
)

func (s *TicketPartState) Scan(value interface{}) error { return scanEnum((*string)(s), value) }
func (s TicketPartState) Value() (driver.Value, error)  { return string(s), nil }

func scanEnum(dest *string, value interface{}) error {
	switch v := value.(type) {
	case string:
		*dest = v
	case []byte:
		*dest = string(v)
	default:
		return fmt.Errorf("cannot scan %T into enum", value)
	}
	return nil
}

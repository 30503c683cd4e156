package ocpp

import "reflect"

// actions is the closed set from the OCPP 1.6-J action table. Nothing outside
// this set is a valid Action; the dispatcher and codec both rely on this
// closure for exhaustiveness.
var actions = map[Action]struct{}{
	ActionAuthorize:                     {},
	ActionBootNotification:              {},
	ActionCancelReservation:             {},
	ActionChangeAvailability:            {},
	ActionChangeConfiguration:           {},
	ActionClearCache:                    {},
	ActionClearChargingProfile:          {},
	ActionDataTransfer:                  {},
	ActionDiagnosticsStatusNotification: {},
	ActionFirmwareStatusNotification:    {},
	ActionGetCompositeSchedule:          {},
	ActionGetConfiguration:              {},
	ActionGetDiagnostics:                {},
	ActionGetLocalListVersion:           {},
	ActionHeartbeat:                     {},
	ActionMeterValues:                   {},
	ActionRemoteStartTransaction:        {},
	ActionRemoteStopTransaction:         {},
	ActionReserveNow:                    {},
	ActionReset:                         {},
	ActionSendLocalList:                 {},
	ActionSetChargingProfile:            {},
	ActionStartTransaction:              {},
	ActionStatusNotification:            {},
	ActionStopTransaction:               {},
	ActionTriggerMessage:                {},
	ActionUnlockConnector:               {},
	ActionUpdateFirmware:                {},
}

// payloadTypes maps every action to its Request and Response Go types. It is
// the ADT's concrete table: for a given (action, direction) pair there is
// exactly one structural shape, selected at deserialization time by
// reflect.New rather than by a type switch, since the table is keyed by a
// runtime string read off the wire.
var payloadTypes = map[Action][2]reflect.Type{
	ActionAuthorize:                     {reflect.TypeOf(AuthorizeRequest{}), reflect.TypeOf(AuthorizeResponse{})},
	ActionBootNotification:              {reflect.TypeOf(BootNotificationRequest{}), reflect.TypeOf(BootNotificationResponse{})},
	ActionCancelReservation:             {reflect.TypeOf(CancelReservationRequest{}), reflect.TypeOf(CancelReservationResponse{})},
	ActionChangeAvailability:            {reflect.TypeOf(ChangeAvailabilityRequest{}), reflect.TypeOf(ChangeAvailabilityResponse{})},
	ActionChangeConfiguration:           {reflect.TypeOf(ChangeConfigurationRequest{}), reflect.TypeOf(ChangeConfigurationResponse{})},
	ActionClearCache:                    {reflect.TypeOf(ClearCacheRequest{}), reflect.TypeOf(ClearCacheResponse{})},
	ActionClearChargingProfile:          {reflect.TypeOf(ClearChargingProfileRequest{}), reflect.TypeOf(ClearChargingProfileResponse{})},
	ActionDataTransfer:                  {reflect.TypeOf(DataTransferRequest{}), reflect.TypeOf(DataTransferResponse{})},
	ActionDiagnosticsStatusNotification: {reflect.TypeOf(DiagnosticsStatusNotificationRequest{}), reflect.TypeOf(DiagnosticsStatusNotificationResponse{})},
	ActionFirmwareStatusNotification:    {reflect.TypeOf(FirmwareStatusNotificationRequest{}), reflect.TypeOf(FirmwareStatusNotificationResponse{})},
	ActionGetCompositeSchedule:          {reflect.TypeOf(GetCompositeScheduleRequest{}), reflect.TypeOf(GetCompositeScheduleResponse{})},
	ActionGetConfiguration:              {reflect.TypeOf(GetConfigurationRequest{}), reflect.TypeOf(GetConfigurationResponse{})},
	ActionGetDiagnostics:                {reflect.TypeOf(GetDiagnosticsRequest{}), reflect.TypeOf(GetDiagnosticsResponse{})},
	ActionGetLocalListVersion:           {reflect.TypeOf(GetLocalListVersionRequest{}), reflect.TypeOf(GetLocalListVersionResponse{})},
	ActionHeartbeat:                     {reflect.TypeOf(HeartbeatRequest{}), reflect.TypeOf(HeartbeatResponse{})},
	ActionMeterValues:                   {reflect.TypeOf(MeterValuesRequest{}), reflect.TypeOf(MeterValuesResponse{})},
	ActionRemoteStartTransaction:        {reflect.TypeOf(RemoteStartTransactionRequest{}), reflect.TypeOf(RemoteStartTransactionResponse{})},
	ActionRemoteStopTransaction:         {reflect.TypeOf(RemoteStopTransactionRequest{}), reflect.TypeOf(RemoteStopTransactionResponse{})},
	ActionReserveNow:                    {reflect.TypeOf(ReserveNowRequest{}), reflect.TypeOf(ReserveNowResponse{})},
	ActionReset:                         {reflect.TypeOf(ResetRequest{}), reflect.TypeOf(ResetResponse{})},
	ActionSendLocalList:                 {reflect.TypeOf(SendLocalListRequest{}), reflect.TypeOf(SendLocalListResponse{})},
	ActionSetChargingProfile:            {reflect.TypeOf(SetChargingProfileRequest{}), reflect.TypeOf(SetChargingProfileResponse{})},
	ActionStartTransaction:              {reflect.TypeOf(StartTransactionRequest{}), reflect.TypeOf(StartTransactionResponse{})},
	ActionStatusNotification:            {reflect.TypeOf(StatusNotificationRequest{}), reflect.TypeOf(StatusNotificationResponse{})},
	ActionStopTransaction:               {reflect.TypeOf(StopTransactionRequest{}), reflect.TypeOf(StopTransactionResponse{})},
	ActionTriggerMessage:                {reflect.TypeOf(TriggerMessageRequest{}), reflect.TypeOf(TriggerMessageResponse{})},
	ActionUnlockConnector:               {reflect.TypeOf(UnlockConnectorRequest{}), reflect.TypeOf(UnlockConnectorResponse{})},
	ActionUpdateFirmware:                {reflect.TypeOf(UpdateFirmwareRequest{}), reflect.TypeOf(UpdateFirmwareResponse{})},
}

// ParseAction matches s case-sensitively against the closed action set. A
// miss is reported via the bool, never by returning a zero-value Action that
// could be mistaken for a real one.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	if _, ok := actions[a]; !ok {
		return "", false
	}
	return a, true
}

// NewRequest returns a fresh, zero-valued pointer to the Request struct for
// action, ready for json.Unmarshal.
func NewRequest(a Action) (interface{}, bool) {
	types, ok := payloadTypes[a]
	if !ok {
		return nil, false
	}
	return reflect.New(types[0]).Interface(), true
}

// NewResponse returns a fresh, zero-valued pointer to the Response struct for
// action, ready for json.Unmarshal.
func NewResponse(a Action) (interface{}, bool) {
	types, ok := payloadTypes[a]
	if !ok {
		return nil, false
	}
	return reflect.New(types[1]).Interface(), true
}

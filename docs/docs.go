// Package docs Ambulance Dispatch API.
//
// Documentation of the Ambulance Dispatch API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - basic
//     - bearer
//
//    SecurityDefinitions:
//    basic:
//      type: basic
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route POST /api/v1/emergencies emergencies createEmergency
// Records a new emergency call. No authentication is required.
// responses:
//   201: emergencyResponse
//   400: errorResponse

// swagger:parameters createEmergency
type createEmergencyParamsWrapper struct {
	// in:body
	Body models.EmergencyIntake
}

// A single emergency call
// swagger:response emergencyResponse
type emergencyResponseWrapper struct {
	// in:body
	Body models.EmergencyCall
}

// swagger:route GET /api/v1/emergencies emergencies listEmergencies
// Lists emergency calls by scope: active, board, pending, completed or all.
// responses:
//   200: emergenciesResponse
//   403: errorResponse

// A list of emergency calls, newest first
// swagger:response emergenciesResponse
type emergenciesResponseWrapper struct {
	// in:body
	Body []models.EmergencyCall
}

// swagger:route PATCH /api/v1/emergencies/{emergency_id}/status emergencies updateEmergencyStatus
// Moves a call to the next status of its lifecycle.
// responses:
//   200: emergencyResponse
//   403: errorResponse
//   409: errorResponse

// swagger:route POST /api/v1/emergencies/{emergency_id}/acknowledge emergencies acknowledgeDispatch
// Acknowledges a dispatch for the assigned paramedic.
// responses:
//   200: acknowledgementResponse
//   403: errorResponse

// Dispatch summary with preparation tasks
// swagger:response acknowledgementResponse
type acknowledgementResponseWrapper struct {
	// in:body
	Body models.DispatchAcknowledgement
}

// swagger:route POST /api/v1/dispatch dispatch dispatchAmbulance
// Assigns an available ambulance to a RECEIVED call.
// responses:
//   200: dispatchResponse
//   403: errorResponse
//   404: errorResponse
//   409: errorResponse
//   503: errorResponse

// swagger:parameters dispatchAmbulance
type dispatchParamsWrapper struct {
	// in:body
	Body models.DispatchRequest
}

// The committed dispatch
// swagger:response dispatchResponse
type dispatchResponseWrapper struct {
	// in:body
	Body models.DispatchResult
}

// swagger:route POST /api/v1/ambulances/{ambulance_id}/location ambulances updateLocation
// Records a GPS fix for an ambulance.
// responses:
//   200: ambulanceResponse
//   400: errorResponse

// swagger:route POST /api/v1/ambulances/{ambulance_id}/complete ambulances completeAssignment
// Frees an ambulance after its call.
// responses:
//   200: ambulanceResponse
//   409: errorResponse

// swagger:route POST /api/v1/ambulances ambulances createAmbulance
// Registers a unit. Dispatchers only; unit numbers are unique.
// responses:
//   201: ambulanceResponse
//   400: errorResponse
//   403: errorResponse
//   409: errorResponse

// swagger:parameters createAmbulance
type createAmbulanceParamsWrapper struct {
	// in:body
	Body models.AmbulanceInput
}

// swagger:route DELETE /api/v1/ambulances/{ambulance_id} ambulances deleteAmbulance
// Removes an AVAILABLE unit with no current emergency. Dispatchers only.
// responses:
//   204:
//   403: errorResponse
//   409: errorResponse

// A single ambulance
// swagger:response ambulanceResponse
type ambulanceResponseWrapper struct {
	// in:body
	Body models.Ambulance
}

// swagger:route POST /api/v1/hospitals/{hospital_id}/capacity hospitals updateCapacity
// Updates bed counts and the emergency capacity tier.
// responses:
//   200: hospitalResponse
//   400: errorResponse

// swagger:parameters updateCapacity
type updateCapacityParamsWrapper struct {
	// in:body
	Body models.CapacityUpdate
}

// swagger:route POST /api/v1/hospitals hospitals createHospital
// Registers a hospital. Admins only.
// responses:
//   201: hospitalResponse
//   400: errorResponse
//   403: errorResponse

// swagger:parameters createHospital
type createHospitalParamsWrapper struct {
	// in:body
	Body models.HospitalInput
}

// swagger:route PATCH /api/v1/hospitals/{hospital_id} hospitals updateHospital
// Edits a hospital. Dispatchers may not change its location.
// responses:
//   200: hospitalResponse
//   400: errorResponse
//   403: errorResponse

// swagger:parameters updateHospital
type updateHospitalParamsWrapper struct {
	// in:body
	Body models.HospitalUpdate
}

// swagger:route DELETE /api/v1/hospitals/{hospital_id} hospitals deleteHospital
// Removes a hospital. Admins only.
// responses:
//   204:
//   403: errorResponse

// A single hospital
// swagger:response hospitalResponse
type hospitalResponseWrapper struct {
	// in:body
	Body models.Hospital
}

// swagger:route GET /api/v1/users users listUsers
// Lists accounts, optionally filtered by ?role=. Admins only.
// responses:
//   200: usersResponse
//   403: errorResponse

// swagger:route POST /api/v1/users users createUser
// Opens an account. Admins only; emails are unique.
// responses:
//   201: userResponse
//   400: errorResponse
//   409: errorResponse

// swagger:parameters createUser
type createUserParamsWrapper struct {
	// in:body
	Body models.UserInput
}

// swagger:route PATCH /api/v1/users/{user_id} users updateUser
// Edits an account. The role cannot be changed.
// responses:
//   200: userResponse
//   400: errorResponse

// swagger:parameters updateUser
type updateUserParamsWrapper struct {
	// in:body
	Body models.UserUpdate
}

// swagger:route DELETE /api/v1/users/{user_id} users deleteUser
// Closes an account and blanks every reference to it. Admins cannot delete themselves.
// responses:
//   204:
//   400: errorResponse

// A single account
// swagger:response userResponse
type userResponseWrapper struct {
	// in:body
	Body models.User
}

// A list of accounts
// swagger:response usersResponse
type usersResponseWrapper struct {
	// in:body
	Body []models.User
}

// Error body shared by every endpoint
// swagger:response errorResponse
type errorResponseWrapper struct {
	// in:body
	Body models.ErrorMessageResponse
}

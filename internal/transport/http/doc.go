// Package http implements the HTTP handlers of the COT service.
//
// Handlers stay thin: they parse and validate the request, call the
// service layer and render the result. Service errors are mapped to
// RFC 7807 problem documents through the shared ErrorHandler, so every
// failure has the same shape:
//
//	{
//	    "type": "/errors/dataset/empty",
//	    "title": "Unprocessable Entity",
//	    "status": 422,
//	    "detail": "No asset rows were found in the data",
//	    "instance": "/api/cot/positions",
//	    "error_code": "DATASET_EMPTY"
//	}
//
// Successful JSON responses wrap the payload as {"status":"success","data":...}
// with a count for collections. Exports are served as CSV attachments.
//
// The websocket endpoint upgrades the connection and hands it to the hub,
// which pushes a data_update message after every dataset replacement.
package http

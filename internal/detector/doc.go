// Package detector provides clients for the external face and landmark
// detection service.
//
// The model itself lives outside this process. Two transports are supported:
//
//   - WebSocket: a long-lived connection to a detection service, one JSON
//     text message per request and per reply.
//   - Worker: a child process reading length-prefixed JSON requests on stdin
//     and writing length-prefixed replies on file descriptor 3.
//
// Both carry the same envelope. A detect request holds the frame as a base64
// JPEG plus its pixel size and the confidence threshold:
//
//	{"type":"detect","id":"…","threshold":0.5,"width":640,"height":480,"frame":"/9j/…"}
//
// and the reply echoes the id with zero or more detections, landmarks given
// as [x, y] pairs per group:
//
//	{"id":"…","detections":[{"box":{"x":…,"y":…,"width":…,"height":…},
//	  "score":0.93,"landmarks":{"jaw":[[x,y],…],"leftEye":[…],…}}]}
//
// A ping request ({"type":"ping","id":"…"}) is answered with an empty
// detection list and is used by Ready. A non-empty "error" field in a reply
// fails the request.
package detector

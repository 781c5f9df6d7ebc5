// Package homeassistant provides history sources backed by a Home Assistant
// instance: Client reads state history from the REST API and
// StatisticsClient reads long-term statistics over the WebSocket API.
// Both implement history.Source and report every transport, status or
// decoding failure as history.ErrConnection.
package homeassistant

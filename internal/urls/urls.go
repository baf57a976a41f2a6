package urls

// Protocol documentation linked from troubleshooting output

// ImprovHome is the Improv Wi-Fi project site
const ImprovHome = "https://www.improv-wifi.com/"

// SerialProtocol documents the serial framing, packet types and RPC
// commands spoken by improvd and improvctl.
const SerialProtocol = "https://www.improv-wifi.com/serial/"

// Repository hosts the source and issue tracker
const Repository = "https://github.com/muurk/improv"

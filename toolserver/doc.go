// Package toolserver manages external tool servers: the persisted
// configuration document, enable/disable state at server and tool
// granularity, stdio subprocess sessions speaking the MCP
// initialize/list/invoke protocol, and name resolution from a tool
// name to the single enabled server that exposes it.
package toolserver

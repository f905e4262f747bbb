// Package factory builds pluggable modules, such as metrics sinks, from
// configuration. A module is selected by its type name and receives the raw
// "conf" map, which it decodes into its own settings struct with Decode:
//
//	sinks:
//	  - type: influx
//	    conf:
//	      url: http://influx:8086
//	      timeout: 3s
package factory

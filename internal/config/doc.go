// Package config loads and validates flagstream.json project configuration.
package config

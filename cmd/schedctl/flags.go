package main

import "time"

// GlobalFlags are shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
	Insecure   bool
	CACert     string
}

type ServeFlags struct {
	ConfigPath string
	Daemonize  bool
	PidFile    string
	LogFile    string
}

type LogsFlags struct {
	Lines int
}

type HistoryFlags struct {
	Limit int
}

type DateFlags struct {
	Date     string
	Filename string
}

type ConfigSetFlags struct {
	File string
}

type InitFlags struct {
	Type   string
	Name   string
	Output string
	Force  bool
}

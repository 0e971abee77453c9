// Package common provides the data structures shared by the switch, the replica
// servers and the clients of the tuple space.
//
// Key Components:
//
//   - Message: The single structure used for requests and responses. The content type
//     selects the payload: one tuple, a scalar result or a list of tuples. Factory
//     functions exist for every operation.
//
//   - OpCode: The operations SIZE, OUT, IN, IN_ALL, COPY, COPY_ALL and QUIT. A response
//     carries the request code plus one, failures are answered with ERROR and result -1.
//     OUT, IN and IN_ALL are write operations and reach every replica, the others are
//     read operations.
//
//   - ServerConfig, SwitchConfig, ClientConfig: Configuration of the three kinds of
//     processes, each with a String method for startup logs.
//
//   - Logger: Custom logging implementation that plugs into the dragonboat logger
//     package, giving every package a named logger with a shared format.
package common

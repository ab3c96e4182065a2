// Package blackboard provides type-safe Go definitions and Redis schema patterns
// for keyhunt search sessions.
//
// # Overview
//
// The blackboard is the shared state through which participants running in
// separate processes cooperate on one search. The entry participant writes the
// session record; every other participant reads its configuration from there,
// joins it, and exchanges coordination messages through per-participant
// mailboxes.
//
// # Core Concepts
//
// A Session records the search configuration (strategy, tie break policy,
// participant count, keyspace, ciphertext and known phrase) together with its
// lifecycle status and, once found, the winning key.
//
// Messages are the coordination protocol: work requests and units in the
// dynamic strategy, and found, stop, exhausted, stopped and ack reports in
// both strategies. Each participant owns one mailbox list.
//
// The unit ledger records every unit the dispatcher issued, scored by issue
// sequence, so that double issuance is detectable and an operator can inspect
// progress.
//
// # Usage Example
//
//	client, err := blackboard.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	session := &blackboard.Session{
//		ID:           uuid.New().String(),
//		Strategy:     blackboard.StrategyDynamic,
//		TieBreak:     blackboard.TieBreakOrdered,
//		Participants: 4,
//		UnitSize:     1_000_000,
//		Keyspace:     keyspace.Full(),
//		Ciphertext:   ciphertext,
//		Phrase:       "es una prueba de",
//		Status:       blackboard.SessionStatusConfiguring,
//	}
//	if err := client.CreateSession(ctx, session); err != nil {
//		log.Fatal(err)
//	}
//
// # Redis Schema
//
// All Redis keys follow the pattern: keyhunt:{namespace}:session:{uuid}[:{sub}]
//
// Sessions: keyhunt:{namespace}:session:{session_id}
// Members: keyhunt:{namespace}:session:{session_id}:members
// Mailboxes: keyhunt:{namespace}:session:{session_id}:inbox:{participant}
// Issued units: keyhunt:{namespace}:session:{session_id}:units
//
// Pub/Sub channel: keyhunt:{namespace}:session_events
package blackboard

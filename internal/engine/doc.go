// Package engine is the single entry point of edgeshift. An [Engine] wires the
// device monitor, local executor, dispatcher, remote client and sync
// coordinator from a [config.Config], fills task defaults, and owns the
// background loops started by [Engine.Start] and stopped by [Engine.Destroy].
//
//	eng, err := engine.New(cfg, engine.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer eng.Destroy()
//	eng.Start(ctx)
//	res, err := eng.ExecuteTask(ctx, t)
package engine

// Package lock 保证同一输出目录同一时刻只有一个运行在写。
//
// 单个运行内部的 attempt 本来就是串行的；这里防的是两个进程（或同一进程里的
// 两个 Orchestrator）指向同一个程序目录时互相覆盖产物。
// local 后端是进程内 map；redis 后端用 SET NX PX 加 Lua 比较删除，持有期间续期。
package lock

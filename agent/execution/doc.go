/*
包 execution 以子进程方式运行外部 3D 引擎，并给出通过/失败结论。

# 概述

Supervisor 把清洗后的程序文件交给引擎（默认 Blender，无界面批处理模式），
自行施加墙钟超时，超时与非零退出同等对待。引擎及其派生进程放在
独立进程组中，超时时整组结束。

# 模式

  - ModeCapture：非零退出作为 Result.Diagnostics() 返回，重试循环的默认模式。
  - ModeFailFast：非零退出返回 EXECUTION_FAILED 错误，用于单次执行。

# 程序槽

WriteProgram 把程序写入固定路径（每次尝试覆盖），先写临时文件再 rename。
*/
package execution

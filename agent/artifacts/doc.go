/*
包 artifacts 管理渲染产物的生命周期。

  - Clear：每次执行前删除约定路径上的旧产物，失败的尝试不会被上一次的渲染结果误判为通过。
  - Archiver：可选的逐次归档。每次尝试的程序与渲染结果复制到
    <root>/<run-id>/attempt_<k>/，清单 manifest.json 记录 SHA-256 校验和、
    尝试到达的状态与拒绝原因；缺失的产物记在 Missing 中。
*/
package artifacts
